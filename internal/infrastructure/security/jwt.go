// Package security provides JWT token utilities for stream and sysop
// authorization.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// StreamClaims is what a validated stream token carries: the client
// identity and the topics it may observe.
type StreamClaims struct {
	ClientID string
	Topics   []string
}

// ValidateJWT validates a token and returns its claims.
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateStreamToken creates a token authorizing a client to open a
// stream over the given topics.
func GenerateStreamToken(clientID string, topics []string, jwtSecret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":    clientID,
		"topics": topics,
		"iat":    time.Now().UTC().Unix(),
		"exp":    time.Now().UTC().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// StreamClaimsFromToken validates a stream token and extracts the client
// identity and authorized topics.
func StreamClaimsFromToken(tokenString, jwtSecret string) (*StreamClaims, error) {
	claims, err := ValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("stream token missing subject")
	}

	rawTopics, ok := claims["topics"].([]any)
	if !ok {
		return nil, errors.New("stream token missing topics")
	}
	topics := make([]string, 0, len(rawTopics))
	for _, raw := range rawTopics {
		topic, ok := raw.(string)
		if !ok {
			return nil, errors.New("stream token topic is not a string")
		}
		topics = append(topics, topic)
	}

	return &StreamClaims{ClientID: sub, Topics: topics}, nil
}

// GenerateSysopToken creates a short-lived dashboard session token.
func GenerateSysopToken(jwtSecret string) (string, error) {
	claims := jwt.MapClaims{
		"role": "sysop",
		"iat":  time.Now().UTC().Unix(),
		"exp":  time.Now().UTC().Add(12 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// IsSysopToken reports whether the token is a valid sysop session token.
func IsSysopToken(tokenString, jwtSecret string) bool {
	claims, err := ValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "sysop"
}
