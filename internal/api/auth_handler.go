package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"pockettrade.com/internal/api/middleware"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/model"
)

type AuthHandler struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
	adminPass string
	logger    *zap.Logger
}

func NewAuthHandler(db *gorm.DB, cfg config.ServerConfig, logger *zap.Logger) *AuthHandler {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &AuthHandler{
		db:        db,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  ttl,
		adminPass: cfg.AdminPassword,
		logger:    logger,
	}
}

type LoginRequest struct {
	Username string `json:"Username"`
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

type RegisterRequest struct {
	Username string `json:"Username"`
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

type AuthResponse struct {
	Token    string `json:"Token"`
	ID       uint   `json:"ID"`
	Username string `json:"Username"`
	Email    string `json:"Email"`
	Role     string `json:"Role"`
}

// Register creates a new user (default role: user)
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	if req.Email == "" {
		return badRequest(c, "Email is required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}
	// Username 为空时使用 Email
	if req.Username == "" {
		req.Username = req.Email
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"Error": "Crypto error"})
	}

	user := model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     model.RoleUser,
		IsActive: true,
	}

	if err := h.db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		return badRequest(c, "Username or Email already exists")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"Message": "User registered successfully"})
}

// Login authenticates user and returns JWT
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	// Email 优先，其次 Username
	loginID := req.Email
	if loginID == "" {
		loginID = req.Username
	}
	if loginID == "" {
		return badRequest(c, "Email or Username is required")
	}

	var user model.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ? OR username = ?", loginID, loginID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "Invalid credentials"})
	}
	if !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "User is disabled"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "Invalid credentials"})
	}

	t, err := h.issueToken(user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"Error": "Failed to sign token"})
	}

	return c.JSON(AuthResponse{
		Token:    t,
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	})
}

func (h *AuthHandler) issueToken(user model.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	})
	return token.SignedString(h.jwtSecret)
}

// EnsureAdminUser checks if any user exists, if not creates a default admin
func (h *AuthHandler) EnsureAdminUser() error {
	var count int64
	if err := h.db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := h.adminPass
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	h.logger.Info("Auth: No users found. Creating default 'admin' user...")
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := model.User{
		Username: "admin",
		Email:    "admin@pockettrade.local",
		Password: string(hashedPassword),
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	if err := h.db.Create(&admin).Error; err != nil {
		return err
	}
	if generated {
		h.logger.Warn("Auth: Created default admin with generated password", zap.String("password", password))
	} else {
		h.logger.Info("Auth: Created default admin user")
	}
	return nil
}

// GetMe 当前用户信息
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	var user model.User
	if err := h.db.WithContext(c.UserContext()).Where("username = ?", middleware.Identity(c)).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"Error": "User not found"})
	}

	return c.JSON(fiber.Map{
		"ID":        user.ID,
		"Username":  user.Username,
		"Email":     user.Email,
		"Role":      user.Role,
		"IsActive":  user.IsActive,
		"CreatedAt": user.CreatedAt,
	})
}

// Logout 无状态 JWT，客户端删除 token 即可
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"Message": "Logged out successfully",
	})
}

// SetRole 管理员修改用户角色，新 token 生效
// PUT /api/users/:username/role
func (h *AuthHandler) SetRole(c *fiber.Ctx) error {
	var req struct {
		Role string `json:"Role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	switch req.Role {
	case model.RoleUser, model.RoleOperator, model.RoleAdmin:
	default:
		return badRequest(c, "Unknown role")
	}

	res := h.db.WithContext(c.UserContext()).Model(&model.User{}).
		Where("username = ?", c.Params("username")).
		Update("role", req.Role)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"Error": "Failed to update role"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"Error": "User not found"})
	}
	return c.JSON(fiber.Map{"Message": "Role updated"})
}
