package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals 中保存的用户信息
const (
	LocalUserID   = "id"
	LocalIdentity = "identity"
	LocalRole     = "role"
)

// Claims token 中的用户信息，Username 即业务身份
type Claims struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid or expired token")

// ParseToken 校验并解析 HMAC 签名的 token
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Username == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Identity 当前请求的用户身份
func Identity(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalIdentity).(string)
	return s
}

// Role 当前请求的角色
func Role(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalRole).(string)
	return s
}

// CasbinMiddleware checks permissions for the request using JWT claims
func CasbinMiddleware(enforcer *casbin.Enforcer, jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Extract Token
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "Missing Authorization header"})
		}

		// 2. Parse Token
		claims, err := ParseToken(strings.TrimPrefix(authHeader, "Bearer "), jwtSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"Error": "Invalid or expired token"})
		}

		// 3. 以角色作为 casbin subject，策略按角色定义
		c.Locals(LocalUserID, claims.ID)
		c.Locals(LocalIdentity, claims.Username)
		c.Locals(LocalRole, claims.Role)

		// 4. Check Permission
		obj := c.Path()
		act := c.Method()

		permit, err := enforcer.Enforce(claims.Role, obj, act)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"Error": "Permission check failed"})
		}

		if permit {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"Error":  "Permission denied",
			"Detail": fmt.Sprintf("Role %s is not allowed to %s %s", claims.Role, act, obj),
		})
	}
}
