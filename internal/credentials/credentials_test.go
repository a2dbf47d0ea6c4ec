package credentials_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

func TestValidateHostname(t *testing.T) {
	validHosts := []string{
		"localhost", "LOCALHOST", "127.0.0.1", "192.168.1.10", "0.0.0.0",
		"::1", "[::1]", "fe80::1", "2001:db8::8a2e:370:7334",
		"db", "db.example.com", "my-host", "a.b-c.de", "example.com.",
	}
	for _, h := range validHosts {
		if res := credentials.ValidateHostname(h); !res.IsValid {
			t.Errorf("ValidateHostname(%q) = invalid (%s), want valid", h, res.Message)
		}
	}

	invalidHosts := []string{
		"", "my host", " localhost", "host!", "bad_host", "-lead.com", "trail-.com",
		"256.1.1.1", "1.2.3", "host:5432", "http://example.com", "a..b", "ho$t",
	}
	for _, h := range invalidHosts {
		if res := credentials.ValidateHostname(h); res.IsValid {
			t.Errorf("ValidateHostname(%q) = valid, want invalid", h)
		}
	}
}

func TestValidatePort(t *testing.T) {
	tests := map[string]bool{
		"1": true, "5432": true, "65535": true,
		"": false, "0": false, "65536": false, "-1": false, "54a": false,
	}
	for in, want := range tests {
		if got := credentials.ValidatePort(in).IsValid; got != want {
			t.Errorf("ValidatePort(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidateDatabaseName(t *testing.T) {
	tests := []struct {
		driver string
		name   string
		want   bool
	}{
		{"postgres", "chef_db", true},
		{"postgres", "_private", true},
		{"postgres", "1db", false},
		{"postgres", "chef-db", false},
		{"postgres", strings.Repeat("a", 64), false},
		{"mysql", "1db", true},
		{"mysql", "123", false},
		{"mysql", "chef$db", true},
		{"mysql", "chef db", false},
	}
	for _, tt := range tests {
		if got := credentials.ValidateDatabaseName(tt.driver, tt.name).IsValid; got != tt.want {
			t.Errorf("ValidateDatabaseName(%s, %q) = %v, want %v", tt.driver, tt.name, got, tt.want)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	if !credentials.ValidateUsername("postgres", "authenticator").IsValid {
		t.Error("expected authenticator to be valid")
	}
	if credentials.ValidateUsername("postgres", "chef user").IsValid {
		t.Error("expected username with space to be invalid")
	}
	if credentials.ValidateUsername("mysql", strings.Repeat("u", 33)).IsValid {
		t.Error("expected 33 character mysql username to be invalid")
	}
}

func TestValidateBucketName(t *testing.T) {
	validNames := []string{"my-bucket", "images.chef", "abc", "a1-b2.c3"}
	for _, n := range validNames {
		if res := credentials.ValidateBucketName(n); !res.IsValid {
			t.Errorf("ValidateBucketName(%q) invalid: %s", n, res.Message)
		}
	}
	invalidNames := []string{"", "ab", "My-Bucket", "a..b", "192.168.1.1", "xn--abc", "bucket-", "-bucket", "foo-s3alias", "under_score", strings.Repeat("a", 64)}
	for _, n := range invalidNames {
		if credentials.ValidateBucketName(n).IsValid {
			t.Errorf("ValidateBucketName(%q) = valid, want invalid", n)
		}
	}
}

func TestValidateObjectStoreKeys(t *testing.T) {
	if !credentials.ValidateAccessKey("minioadmin").IsValid {
		t.Error("minioadmin should be a valid access key")
	}
	if credentials.ValidateAccessKey("ab").IsValid {
		t.Error("two character access key should be invalid")
	}
	if credentials.ValidateAccessKey("key=value").IsValid {
		t.Error("access key with '=' should be invalid")
	}
	if !credentials.ValidateSecretKey("minioadmin").IsValid {
		t.Error("minioadmin should be a valid secret key")
	}
	if credentials.ValidateSecretKey(strings.Repeat("s", 41)).IsValid {
		t.Error("41 character secret key should be invalid")
	}
	if credentials.ValidateSecretKey("short").IsValid {
		t.Error("short secret key should be invalid")
	}
}

func TestPasswordStrengthBands(t *testing.T) {
	tests := []struct {
		password string
		score    int
		level    credentials.Level
	}{
		{"", 0, credentials.Weak},
		{"abc", 1, credentials.Weak},
		{"abcdefgh", 2, credentials.Weak},
		{"abcdefgh1", 3, credentials.Medium},
		{"Abcdefgh1", 4, credentials.Medium},
		{"Abcdefgh1!", 5, credentials.Strong},
		{"Abcdefgh1!xyz", 6, credentials.Strong},
	}
	for _, tt := range tests {
		s := credentials.PasswordStrength(tt.password)
		if s.Score != tt.score || s.Level != tt.level {
			t.Errorf("PasswordStrength(%q) = %d/%s, want %d/%s", tt.password, s.Score, s.Level, tt.score, tt.level)
		}
		if len(s.Missing) != credentials.MaxScore-s.Score {
			t.Errorf("PasswordStrength(%q) missing %v inconsistent with score %d", tt.password, s.Missing, s.Score)
		}
	}
}

func TestPasswordStrengthMonotonic(t *testing.T) {
	bases := []string{"", "a", "abc", "ABCDEFG", "1234567", "abcdefghijk", "Pa55", "!!!!"}
	additions := []string{"a", "Z", "7", "#"}
	for _, base := range bases {
		before := credentials.PasswordStrength(base).Score
		if before < 0 || before > credentials.MaxScore {
			t.Fatalf("score %d out of range for %q", before, base)
		}
		for _, add := range additions {
			after := credentials.PasswordStrength(base + add).Score
			if after < before {
				t.Errorf("appending %q to %q decreased score %d -> %d", add, base, before, after)
			}
		}
	}
}

func TestValidatePasswordRejectsWeak(t *testing.T) {
	res := credentials.ValidatePassword("password")
	if res.IsValid {
		t.Fatal("expected weak password to be invalid")
	}
	if res.Strength == nil || res.Strength.Level != credentials.Weak {
		t.Fatalf("expected weak strength attached, got %+v", res.Strength)
	}
	if !strings.Contains(res.Message, "an uppercase letter") {
		t.Errorf("expected missing criteria in message, got %q", res.Message)
	}
}

func hasAny(s, chars string) bool { return strings.ContainsAny(s, chars) }

func TestGenerateSecurePasswordCoverage(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		p, err := credentials.GenerateSecurePassword(4)
		if err != nil {
			t.Fatalf("GenerateSecurePassword: %v", err)
		}
		if len(p) < credentials.MinPasswordLength {
			t.Fatalf("password %q shorter than minimum", p)
		}
		if !hasAny(p, "abcdefghijklmnopqrstuvwxyz") || !hasAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") ||
			!hasAny(p, "0123456789") || !hasAny(p, "!@#$%^&*()-_=+[]{}:,.?") {
			t.Fatalf("password %q misses a character class", p)
		}
		seen[p] = true
	}
	if len(seen) < 990 {
		t.Errorf("expected generated passwords to be distinct, got %d unique of 1000", len(seen))
	}
}

func TestGenerateSecretKeyCoverage(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k, err := credentials.GenerateSecretKey(0)
		if err != nil {
			t.Fatalf("GenerateSecretKey: %v", err)
		}
		if len(k) < credentials.MinSecretKeyLength || len(k) > credentials.MaxSecretKeyLength {
			t.Fatalf("secret key %q length %d out of bounds", k, len(k))
		}
		if !hasAny(k, "abcdefghijklmnopqrstuvwxyz") || !hasAny(k, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") || !hasAny(k, "0123456789") {
			t.Fatalf("secret key %q misses a character class", k)
		}
		if !credentials.ValidateSecretKey(k).IsValid {
			t.Fatalf("generated secret key %q fails validation", k)
		}
	}
	k, _ := credentials.GenerateSecretKey(100)
	if len(k) != credentials.MaxSecretKeyLength {
		t.Errorf("expected clamp to %d, got %d", credentials.MaxSecretKeyLength, len(k))
	}
}

func TestGenerateAccessKey(t *testing.T) {
	k, err := credentials.GenerateAccessKey(credentials.DefaultAccessKeyLength)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	if len(k) != credentials.DefaultAccessKeyLength || strings.ToUpper(k) != k {
		t.Errorf("unexpected access key %q", k)
	}
	if !credentials.ValidateAccessKey(k).IsValid {
		t.Errorf("generated access key %q fails validation", k)
	}
}

func signedKey(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestValidateAPIKey(t *testing.T) {
	anon := signedKey(t, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(time.Hour).Unix()})
	if res := credentials.ValidateAPIKey(anon); !res.IsValid {
		t.Errorf("expected anon key to be valid: %s", res.Message)
	}
	if role := credentials.APIKeyRole(anon); role != "anon" {
		t.Errorf("APIKeyRole = %q, want anon", role)
	}

	expired := signedKey(t, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(-time.Hour).Unix()})
	if credentials.ValidateAPIKey(expired).IsValid {
		t.Error("expected expired key to be invalid")
	}

	noRole := signedKey(t, jwt.MapClaims{"sub": "x"})
	if credentials.ValidateAPIKey(noRole).IsValid {
		t.Error("expected key without role to be invalid")
	}

	if credentials.ValidateAPIKey("not-a-token").IsValid {
		t.Error("expected garbage key to be invalid")
	}
}

func TestValidateFieldDispatch(t *testing.T) {
	tests := []struct {
		kind  endpoint.Kind
		field string
		value string
		want  bool
	}{
		{endpoint.KindRelationalGateway, "host", "localhost", true},
		{endpoint.KindRelationalGateway, "port", "5432", true},
		{endpoint.KindRelationalGateway, "gatewayPort", "", true},
		{endpoint.KindRelationalGateway, "database", "chef-db", false},
		{endpoint.KindRelationalGateway, "password", "abc", false},
		{endpoint.KindObjectStore, "bucket", "Bad_Bucket", false},
		{endpoint.KindObjectStore, "bucket", "chef-images", true},
		{endpoint.KindObjectStore, "endpointUrl", "http://minio:9000", true},
		{endpoint.KindObjectStore, "endpointUrl", "minio host", false},
		{endpoint.KindHostedPlatform, "url", "https://abc.supabase.co", true},
		{endpoint.KindHostedPlatform, "url", "ftp://abc.supabase.co", false},
		{endpoint.KindObjectStore, "region", "", true},
	}
	for _, tt := range tests {
		if got := credentials.ValidateField(tt.kind, "", tt.field, tt.value).IsValid; got != tt.want {
			t.Errorf("ValidateField(%s, %s, %q) = %v, want %v", tt.kind, tt.field, tt.value, got, tt.want)
		}
	}
}

func TestValidateField_DirectDriverRules(t *testing.T) {
	longUser := strings.Repeat("u", 40)
	tests := []struct {
		driver string
		field  string
		value  string
		want   bool
	}{
		{"mysql", "database", "1chef", true},
		{"postgres", "database", "1chef", false},
		{"", "database", "1chef", false},
		{"mysql", "username", longUser, false},
		{"postgres", "username", longUser, true},
		{"MySQL", "dbname", "1chef", true},
	}
	for _, tt := range tests {
		if got := credentials.ValidateField(endpoint.KindRelationalDirect, tt.driver, tt.field, tt.value).IsValid; got != tt.want {
			t.Errorf("ValidateField(%q, %s, %q) = %v, want %v", tt.driver, tt.field, tt.value, got, tt.want)
		}
	}
	if !credentials.ValidateField(endpoint.KindRelationalGateway, "mysql", "username", longUser).IsValid {
		t.Error("gateway usernames follow PostgreSQL rules regardless of driver")
	}
}
