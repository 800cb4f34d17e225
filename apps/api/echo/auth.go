package echoapi

import (
	"context"
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	tokenAudience = "CTS"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	TokenType    string   `json:"typ,omitempty"`
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role,omitempty"` // primary role, drives the dashboard
	Roles        []string `json:"roles,omitempty"`
}

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GetUserClaims returns the access token claims of `usr`.
// origIat is the issue time of the login the token is refreshed from.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	return newClaims(conf, usr, tokenTypeAccess, conf.Server.JWTExpirationDelta, origIat...)
}

// getRefreshClaims returns the refresh token claims of `usr`; they expire with the refresh period.
func getRefreshClaims(conf *core.Config, usr user.User, origIat int64) *Claims {
	expires := time.Unix(origIat, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	return newClaims(conf, usr, tokenTypeRefresh, time.Until(expires), origIat)
}

func newClaims(conf *core.Config, usr user.User, typ string, ttl time.Duration, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TokenType:    typ,
		Email:        usr.Email,
		Role:         usr.PrimaryRole(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errInvalidToken
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// tokenPair holds the tokens handed out on login & refresh.
type tokenPair struct {
	Token        string
	RefreshToken string
}

func issueTokens(conf *core.Config, usr user.User, origIat ...int64) (tokenPair, error) {
	access := GetUserClaims(conf, usr, origIat...)
	token, err := GenerateToken(conf, access)
	if err != nil {
		return tokenPair{}, errors.Wrap(err, "generating access token")
	}
	refresh, err := GenerateToken(conf, getRefreshClaims(conf, usr, access.OrigIssuedAt))
	if err != nil {
		return tokenPair{}, errors.Wrap(err, "generating refresh token")
	}
	return tokenPair{Token: token, RefreshToken: refresh}, nil
}

func authenticate(ctx context.Context, email, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.Active() {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// refreshTokens exchanges a refresh token for a new access token, within the refresh period of the original login.
func refreshTokens(ctx context.Context, conf *core.Config, refreshToken string, svc user.Service) (tokenPair, user.User, error) {
	claims, err := parseToken(conf, refreshToken)
	if err != nil || claims.TokenType != tokenTypeRefresh {
		return tokenPair{}, user.User{}, errInvalidToken
	}

	usr, err := svc.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return tokenPair{}, user.User{}, errInvalidToken
		}
		return tokenPair{}, user.User{}, errors.Wrap(err, "finding user by ID")
	}

	// check if user is still active
	if !usr.Active() {
		return tokenPair{}, user.User{}, errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return tokenPair{}, user.User{}, errRefreshExpired
	}

	access, err := GenerateToken(conf, GetUserClaims(conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return tokenPair{}, user.User{}, errors.Wrap(err, "generating access token")
	}
	return tokenPair{Token: access, RefreshToken: refreshToken}, usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.Active() {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}
