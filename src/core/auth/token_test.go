package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerify(t *testing.T) {
	at, err := NewAuthToken("secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, expires, err := at.GenerateToken("scanner-01")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if d := time.Until(expires); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("expires in %v", d)
	}

	ok, clientID, err := at.VerifyToken(token)
	if err != nil || !ok || clientID != "scanner-01" {
		t.Errorf("VerifyToken = %v, %q, %v", ok, clientID, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	at, _ := NewAuthToken("secret", time.Hour)
	other, _ := NewAuthToken("another-secret", time.Hour)
	foreign, _, _ := other.GenerateToken("scanner-01")
	valid, _, _ := at.GenerateToken("scanner-01")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": "scanner-01",
		"exp":       time.Now().Add(-time.Minute).Unix(),
	})
	expiredToken, _ := expired.SignedString([]byte("secret"))

	noClient := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	noClientToken, _ := noClient.SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "空token", token: ""},
		{name: "格式错误", token: "not.a.jwt"},
		{name: "密钥不同", token: foreign},
		{name: "已过期", token: expiredToken},
		{name: "缺少client_id", token: noClientToken},
		{name: "篡改签名", token: valid[:len(valid)-3] + "AAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := at.VerifyToken(tt.token)
			if ok || err == nil {
				t.Errorf("VerifyToken accepted %q", tt.token)
			}
		})
	}
}

func TestNewAuthTokenRequiresSecret(t *testing.T) {
	if _, err := NewAuthToken("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	at, _ := NewAuthToken("s", 0)
	if at.ttl != DefaultTTL {
		t.Errorf("ttl = %v", at.ttl)
	}
}
