package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastArgon() *Params {
	return &Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestBcryptHash(t *testing.T) {
	h := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 4})

	hash, err := h.Hash("3210123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash() format invalid, got %s", hash)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost < MinBcryptCost {
		t.Errorf("cost = %d, want at least %d", cost, MinBcryptCost)
	}
}

func TestVerify(t *testing.T) {
	bc, err := New(Config{Algorithm: AlgorithmBcrypt}).Hash("mysecretpassword")
	if err != nil {
		t.Fatalf("bcrypt Hash() error = %v", err)
	}
	ar, err := HashWithParams("mysecretpassword", fastArgon())
	if err != nil {
		t.Fatalf("argon2 Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		wantErr  error
	}{
		{"bcrypt correct", bc, "mysecretpassword", nil},
		{"bcrypt wrong", bc, "wrongpassword", ErrMismatch},
		{"bcrypt empty", bc, "", ErrMismatch},
		{"argon2 correct", ar, "mysecretpassword", nil},
		{"argon2 wrong", ar, "wrongpassword", ErrMismatch},
		{"garbage", "notahash", "mysecretpassword", ErrInvalidHash},
		{"empty hash", "", "x", ErrInvalidHash},
		{"wrong argon variant", "$argon2i$v=19$m=65536,t=3,p=2$c29tZXNhbHQ$c29tZWhhc2g", "x", ErrInvalidHash},
		{"malformed argon params", "$argon2id$v=19$invalid$c29tZXNhbHQ$c29tZWhhc2g", "x", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Verify(tt.hash, tt.password); err != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashUniqueness(t *testing.T) {
	h := New(Config{Algorithm: AlgorithmBcrypt})

	hash1, _ := h.Hash("samepassword")
	hash2, _ := h.Hash("samepassword")

	if hash1 == hash2 {
		t.Error("Hash() should produce unique hashes for same password (different salts)")
	}
	if !Match(hash1, "samepassword") || !Match(hash2, "samepassword") {
		t.Error("both hashes should verify")
	}
}

func TestArgonHasher(t *testing.T) {
	h := New(Config{Algorithm: AlgorithmArgon2id, MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1})

	hash, err := h.Hash("testpassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.Contains(hash, "m=8192,t=1,p=1") {
		t.Errorf("params not encoded correctly: %s", hash)
	}
	if err := h.Verify(hash, "testpassword"); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	bc := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 10})
	stronger := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 11})
	argon := New(Config{Algorithm: AlgorithmArgon2id, MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1})

	hash, _ := bc.Hash("pw")

	if bc.NeedsRehash(hash) {
		t.Error("same cost should not need rehash")
	}
	if !stronger.NeedsRehash(hash) {
		t.Error("higher configured cost should need rehash")
	}
	if !argon.NeedsRehash(hash) {
		t.Error("algorithm switch should need rehash")
	}
	if !bc.NeedsRehash("garbage") {
		t.Error("unknown hash should need rehash")
	}
}

func TestHashTooLong(t *testing.T) {
	h := New(Config{Algorithm: AlgorithmBcrypt})
	if _, err := h.Hash(strings.Repeat("a", 80)); err != ErrTooLong {
		t.Errorf("Hash() error = %v, want ErrTooLong", err)
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"default length (0)", 0, 16},
		{"custom length 8", 8, 8},
		{"custom length 32", 32, 32},
		{"negative length", -5, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Generate(tt.length); len(got) != tt.want {
				t.Errorf("Generate(%d) length = %d, want %d", tt.length, len(got), tt.want)
			}
		})
	}
}
