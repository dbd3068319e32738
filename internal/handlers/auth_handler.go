package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

const (
	tokenIssuer   = "eternis-leveler"
	loginMsgTitle = "Eternis Leveler Authentication"
)

// TokenIssuer signs and validates session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer; ttl defaults to 24h
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for address with role
func (t *TokenIssuer) Issue(address common.Address, role string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := dto.JWTClaims{
		Address: address.Hex(),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   address.Hex(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate parses and verifies a token
func (t *TokenIssuer) Validate(tokenString string) (*dto.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*dto.JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !common.IsHexAddress(claims.Address) {
		return nil, errors.New("invalid token subject")
	}
	return claims, nil
}

// AuthHandler wallet and owner logins
type AuthHandler struct {
	tokens      *TokenIssuer
	totpSecret  string
	loginWindow time.Duration
	logger      *logrus.Logger
	now         func() time.Time
}

// NewAuthHandler creates an AuthHandler. Owner login is disabled when
// totpSecret is empty.
func NewAuthHandler(tokens *TokenIssuer, totpSecret string, loginWindow time.Duration, logger *logrus.Logger) *AuthHandler {
	if loginWindow <= 0 {
		loginWindow = 5 * time.Minute
	}
	return &AuthHandler{
		tokens:      tokens,
		totpSecret:  totpSecret,
		loginWindow: loginWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateNonceHandler returns a fresh message to sign
// GET /api/auth/nonce
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		respondWithError(c, http.StatusInternalServerError, "NONCE_FAILED", "Failed to generate nonce")
		return
	}

	nonceStr := hex.EncodeToString(nonce)
	timestamp := h.now().Unix()

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"nonce":     nonceStr,
		"message":   LoginMessage(nonceStr, timestamp),
		"timestamp": timestamp,
	})
}

// LoginMessage text a wallet signs to log in
func LoginMessage(nonce string, timestamp int64) string {
	return fmt.Sprintf("%s\nNonce: %s\nTimestamp: %d", loginMsgTitle, nonce, timestamp)
}

// LoginHandler wallet login
// POST /api/auth/login
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{Success: false, Message: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	address, err := h.verifyWallet(req)
	if err != nil {
		h.logger.WithError(err).WithField("address", req.Address).Warn("Wallet login rejected")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{Success: false, Message: err.Error()})
		return
	}

	h.issue(c, address, dto.RoleUser)
}

// OwnerLoginHandler wallet login with TOTP, yields an owner-role token
// POST /api/auth/owner-login
func (h *AuthHandler) OwnerLoginHandler(c *gin.Context) {
	if h.totpSecret == "" {
		c.JSON(http.StatusServiceUnavailable, dto.AuthResponse{Success: false, Message: "Owner login is not configured"})
		return
	}

	var req dto.OwnerAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{Success: false, Message: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	address, err := h.verifyWallet(req.AuthRequest)
	if err != nil {
		h.logger.WithError(err).WithField("address", req.Address).Warn("Owner login rejected")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{Success: false, Message: err.Error()})
		return
	}

	if !totp.Validate(req.TOTPCode, h.totpSecret) {
		h.logger.WithField("address", address.Hex()).Warn("Owner login rejected - invalid TOTP code")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{Success: false, Message: "Invalid TOTP code"})
		return
	}

	h.issue(c, address, dto.RoleOwner)
}

func (h *AuthHandler) issue(c *gin.Context, address common.Address, role string) {
	token, expiresAt, err := h.tokens.Issue(address, role)
	if err != nil {
		h.logger.WithError(err).Error("❌ Token generation failed")
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{Success: false, Message: "Failed to generate token"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"address": address.Hex(),
		"role":    role,
	}).Info("✅ Login succeeded")

	c.JSON(http.StatusOK, dto.AuthResponse{
		Success:   true,
		Token:     token,
		Role:      role,
		ExpiresAt: expiresAt.Unix(),
		Message:   "success",
	})
}

// verifyWallet checks the message freshness and recovers the signer
func (h *AuthHandler) verifyWallet(req dto.AuthRequest) (common.Address, error) {
	claimed, err := types.ParseAddress(req.Address)
	if err != nil || claimed == (common.Address{}) {
		return common.Address{}, errors.New("invalid address")
	}

	ts, err := messageTimestamp(req.Message)
	if err != nil {
		return common.Address{}, err
	}
	age := h.now().Sub(time.Unix(ts, 0))
	if age < -time.Minute || age > h.loginWindow {
		return common.Address{}, errors.New("login message expired")
	}

	signer, err := RecoverSigner(req.Message, req.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if signer != claimed {
		return common.Address{}, errors.New("signature does not match address")
	}
	return signer, nil
}

// RecoverSigner returns the address that personal_signed message
func RecoverSigner(message, signatureHex string) (common.Address, error) {
	sig, err := types.DecodeHex(signatureHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("invalid signature")
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func messageTimestamp(message string) (int64, error) {
	for _, line := range strings.Split(message, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Timestamp:"); ok {
			ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return 0, errors.New("invalid message timestamp")
			}
			return ts, nil
		}
	}
	return 0, errors.New("message has no timestamp")
}
