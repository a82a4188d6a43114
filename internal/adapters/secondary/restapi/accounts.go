package restapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lorrc/helpdesk-client/internal/auth"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
)

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	FirstName   string `json:"first_name"`
}

// Login calls POST /login. The session expiry comes from the token's exp
// claim; the role from the response, else from the token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	req, err := jsonRequest("login", http.MethodPost, "/login", map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}, false)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	res, ok, err := decodeObject[loginResponse](body, "data")
	if err != nil {
		return nil, err
	}
	token := res.AccessToken
	if token == "" {
		token = res.Token
	}
	if !ok || token == "" {
		return nil, apperrors.NewMalformedError(fmt.Errorf("login response has no token"))
	}

	session := &domain.Session{
		Identity: domain.Identity{
			Email:     res.Email,
			Company:   res.Company,
			FirstName: res.FirstName,
		},
		Token: token,
	}

	roleName := res.Role
	if claims, err := auth.ParseClaims(token); err == nil {
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
		if roleName == "" {
			roleName = claims.Role
		}
		if session.Identity.Email == "" {
			session.Identity.Email = claims.UserEmail()
		}
	} else {
		c.logger.DebugContext(ctx, "login token is not a JWT, session has no expiry", "error", err)
	}
	if session.Identity.Email == "" {
		session.Identity.Email = creds.Email
	}

	role, known := domain.ParseRole(roleName)
	if !known {
		c.logger.WarnContext(ctx, "unknown role in login response, treating as user", "role", roleName)
		role = domain.RoleUser
	}
	session.Identity.Role = role

	return session, nil
}

// Register calls POST /register.
func (c *Client) Register(ctx context.Context, params domain.RegistrationParams) error {
	return c.post(ctx, "register", "/register", params)
}

// SignUp calls POST /register without a session. The server picks the
// role, so none is sent.
func (c *Client) SignUp(ctx context.Context, params domain.RegistrationParams) error {
	params.Role = ""
	req, err := jsonRequest("sign up", http.MethodPost, "/register", params, false)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// ChangePassword calls POST /change-password.
func (c *Client) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	return c.post(ctx, "change password", "/change-password", change)
}

// ForgotPassword calls POST /forgot-password. It needs no session.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	req, err := jsonRequest("forgot password", http.MethodPost, "/forgot-password", map[string]string{"email": email}, false)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) post(ctx context.Context, op, path string, payload any) error {
	req, err := jsonRequest(op, http.MethodPost, path, payload, true)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}
