package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"realnext/config"
	"realnext/middleware"
	"realnext/models"
	"realnext/utils"
)

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Name        string `json:"name" validate:"omitempty,max=100"`
	CompanyName string `json:"company_name" validate:"required,max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SwitchClientRequest struct {
	ClientID uint `json:"client_id" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type AuthController struct {
	DB     *gorm.DB
	Codec  *utils.TokenCodec
	Logger *log.Logger

	googleOAuth *oauth2.Config
}

func NewAuthController(db *gorm.DB, codec *utils.TokenCodec, logger *log.Logger) *AuthController {
	return &AuthController{
		DB:     db,
		Codec:  codec,
		Logger: logger,
		googleOAuth: &oauth2.Config{
			ClientID:     config.AppConfig.Google.ClientID,
			ClientSecret: config.AppConfig.Google.ClientSecret,
			RedirectURL:  config.AppConfig.Google.RedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// Register creates a user together with their client workspace: the caller
// becomes the owner with an admin membership, and the workspace starts on a
// free trial subscription.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := checkmail.ValidateFormat(req.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email must be a valid email",
		})
	}

	var existing models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An account with this email already exists",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create account", nil)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if req.Name != "" {
		user.Name = &req.Name
	}

	var membership models.ClientUser
	err = ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		client := models.Client{
			Name:   req.CompanyName,
			Status: models.ClientStatusActive,
		}
		if err := tx.Create(&client).Error; err != nil {
			return err
		}
		membership = models.ClientUser{
			ClientID: client.ID,
			UserID:   user.ID,
			Role:     models.RoleAdmin,
			IsOwner:  true,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		// New workspaces start on the free plan in trial.
		var freePlan models.Plan
		if err := tx.First(&freePlan, "name = ?", "free").Error; err != nil {
			return err
		}
		now := time.Now()
		trialEnd := now.AddDate(0, 0, 14)
		sub := models.Subscription{
			ClientID:           client.ID,
			PlanID:             freePlan.ID,
			Status:             models.SubscriptionStatusTrial,
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &trialEnd,
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		utils.LogError("register_failed", err, map[string]interface{}{"email": req.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create account", nil)
	}

	return ac.respondWithTokens(c, &user, &membership, fiber.StatusCreated)
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}
	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account is not active",
		})
	}

	membership := ac.defaultMembership(user.ID)
	return ac.respondWithTokens(c, &user, membership, fiber.StatusOK)
}

func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	claims, err := ac.Codec.Verify(req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired refresh token",
		})
	}

	var user models.User
	if err := ac.DB.First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account is not active",
		})
	}

	// Preserve the active tenant across the refresh when still valid.
	var membership *models.ClientUser
	if claims.ClientID != nil {
		var m models.ClientUser
		if err := ac.DB.Where("user_id = ? AND client_id = ?", user.ID, *claims.ClientID).First(&m).Error; err == nil {
			membership = &m
		}
	}
	return ac.respondWithTokens(c, &user, membership, fiber.StatusOK)
}

// SwitchClient re-issues tokens bound to another client the caller belongs to.
func (ac *AuthController) SwitchClient(c *fiber.Ctx) error {
	var req SwitchClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user := c.Locals(middleware.LocalsUser).(*models.User)

	var membership models.ClientUser
	err := ac.DB.Where("user_id = ? AND client_id = ?", user.ID, req.ClientID).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You are not a member of this client",
			})
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to switch client", nil)
	}

	return ac.respondWithTokens(c, user, &membership, fiber.StatusOK)
}

// Me returns the fully resolved request context: profile, active client,
// role, permission codes, and the entitlement map route guards consume.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)
	if rc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization required",
		})
	}

	permissions := make([]string, 0, len(rc.Permissions))
	for code := range rc.Permissions {
		permissions = append(permissions, code)
	}

	resp := fiber.Map{
		"user":           rc.User,
		"permissions":    permissions,
		"features":       rc.Features,
		"feature_limits": rc.FeatureLimits,
	}
	if rc.HasTenant() {
		resp["client"] = rc.Client
		resp["role"] = rc.Membership.Role
		resp["is_owner"] = rc.Membership.IsOwner
	}
	return c.JSON(utils.SuccessResponse(resp))
}

func (ac *AuthController) GoogleOAuth(c *fiber.Ctx) error {
	// Generate OAuth state token with CSRF protection
	state, err := utils.GenerateSecureToken()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate state token",
		})
	}

	cookie := new(fiber.Cookie)
	cookie.Name = "oauth_state"
	cookie.Value = state
	cookie.Expires = time.Now().Add(10 * time.Minute)
	cookie.HTTPOnly = true
	cookie.Secure = true
	cookie.SameSite = "Lax"
	c.Cookie(cookie)

	url := ac.googleOAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

func (ac *AuthController) GoogleOAuthCallback(c *fiber.Ctx) error {
	// Verify state token from cookie
	state := c.Query("state")
	cookieState := c.Cookies("oauth_state")
	if state == "" || cookieState == "" || state != cookieState {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid state parameter",
		})
	}
	c.ClearCookie("oauth_state")

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Authorization code not provided",
		})
	}

	token, err := ac.googleOAuth.Exchange(context.Background(), code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to exchange token",
		})
	}

	client := ac.googleOAuth.Client(context.Background(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get user info",
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		utils.LogError("google_oauth_userinfo_failed", errors.New(string(body)), nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Google API error",
		})
	}

	var googleUser struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to parse user info",
		})
	}
	if googleUser.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Google account email is required",
		})
	}

	// Find or create user
	var user models.User
	err = ac.DB.Where("email = ?", googleUser.Email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to sign in", nil)
		}
		user = models.User{
			Email:          googleUser.Email,
			Name:           &googleUser.Name,
			GoogleID:       &googleUser.ID,
			GoogleImageURL: &googleUser.Picture,
			IsActive:       true,
			PasswordHash:   "oauth", // never matches bcrypt compare
		}
		if err := ac.DB.Create(&user).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", nil)
		}
	}
	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account is not active",
		})
	}

	membership := ac.defaultMembership(user.ID)
	return ac.respondWithTokens(c, &user, membership, fiber.StatusOK)
}

// defaultMembership picks the caller's earliest membership as the active
// tenant at sign-in; nil when the user belongs to no client yet.
func (ac *AuthController) defaultMembership(userID uint) *models.ClientUser {
	var membership models.ClientUser
	err := ac.DB.Where("user_id = ?", userID).Order("created_at ASC").First(&membership).Error
	if err != nil {
		return nil
	}
	return &membership
}

func (ac *AuthController) respondWithTokens(c *fiber.Ctx, user *models.User, membership *models.ClientUser, status int) error {
	access, refresh, err := ac.Codec.Issue(user, membership)
	if err != nil {
		utils.LogError("token_issue_failed", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue session", nil)
	}
	user.Sanitize()
	return c.Status(status).JSON(AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}
