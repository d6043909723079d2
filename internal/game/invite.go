package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

const InviteCodeLength = 5

// no 0/O or 1/I so codes survive being read out loud
var inviteAlphabet = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

// NormalizeInviteCode trims raw, checks it is exactly five ASCII letters or
// digits and returns it uppercased.
func NormalizeInviteCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if len(code) != InviteCodeLength {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidInviteCode, InviteCodeLength)
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("%w: only letters and digits allowed", ErrInvalidInviteCode)
		}
	}
	return strings.ToUpper(code), nil
}

func randomCode(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = inviteAlphabet[rand.Intn(len(inviteAlphabet))]
	}
	return string(b)
}

// uniqueCode draws codes until taken reports one as free.
func uniqueCode(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	const attempts = 20
	for i := 0; i < attempts; i++ {
		code := randomCode(InviteCodeLength)
		used, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if !used {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free invite code after %d attempts", attempts)
}
