package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/neuropil/npil"
)

// authorizer checks JWT bearer tokens against a list of users and their privileges.
type authorizer struct {
	secretKey []byte

	// user -> "read", "write" or "readwrite"; "*" matches any user
	users map[string]string
}

func newAuthorizer(c AuthConfig) (*authorizer, error) {
	if c.SecretKey == "" {
		npil.Infof("No JWT secret key given.  Proceeding without authorization.\n")
		return nil, nil
	}
	a := &authorizer{secretKey: []byte(c.SecretKey)}
	if err := a.loadAuthFile(c.AuthFile); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *authorizer) loadAuthFile(filename string) error {
	if len(filename) == 0 {
		npil.Infof("No authorization file found.  Any user with a valid token is authorized.\n")
		a.users = map[string]string{"*": "readwrite"}
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &a.users); err != nil {
		return fmt.Errorf("bad authorization file %q: %v", filename, err)
	}
	return nil
}

// GenerateJWT returns a signed token for the user.
func GenerateJWT(user, secretKey string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["user"] = user

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized is middleware that validates a JWT and sets the c.Env["user"] field
// to the authenticated user.
func (a *authorizer) isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			Unauthorized(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 {
			Unauthorized(w, r, "bearer not in proper format")
			return
		}
		reqToken = strings.TrimSpace(splitToken[1])
		if len(reqToken) == 0 {
			Unauthorized(w, r, "requests require JWT authentication")
			return
		}
		token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return a.secretKey, nil
		})
		if err != nil {
			Unauthorized(w, r, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			Unauthorized(w, r, "failed authorization")
			return
		}
		user, ok := claims["user"].(string)
		if !ok {
			Unauthorized(w, r, "user %v is not a simple string", claims["user"])
			return
		}
		if !a.userIsAuthorized(user, r.Method) {
			Unauthorized(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// userIsAuthorized returns true if the user has the privilege needed for the method.
func (a *authorizer) userIsAuthorized(user string, httpMethod string) bool {
	if len(a.users) == 0 {
		return false
	}
	method := strings.ToLower(httpMethod)
	readReq := method == "get" || method == "head"
	priv, found := a.users[user]
	if !found {
		priv, found = a.users["*"]
		if !found {
			return false
		}
	}
	switch priv {
	case "readwrite":
		return true
	case "read":
		return readReq
	case "write":
		return !readReq
	default:
		npil.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}
