package mlsupervisor

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/srag-go/srag/internal/srerrors"
)

// generateAuthToken returns a cryptographically random 32-byte hex token.
func generateAuthToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("mlsupervisor: system entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// writeTokenWithTimestamp writes "<unixSeconds>:<token>" to path with 0600
// permissions, matching lifecycle.rs's write_token_with_timestamp.
func writeTokenWithTimestamp(path, token string, unixSeconds int64) error {
	content := strconv.FormatInt(unixSeconds, 10) + ":" + token
	return os.WriteFile(path, []byte(content), 0o600)
}

// readAuthToken reads the token file and validates its embedded timestamp
// against serviceStart, rejecting tokens created before the service
// started (replay defense). Legacy token files without a "ts:" prefix are
// accepted for backwards compatibility, with a logged warning.
func readAuthToken(path string, serviceStart int64) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", srerrors.IPCError("read auth token", err)
	}
	content := strings.TrimSpace(string(data))

	if ts, token, ok := strings.Cut(content, ":"); ok {
		if tokenTimestamp, err := strconv.ParseInt(ts, 10, 64); err == nil {
			if tokenTimestamp < serviceStart {
				return "", srerrors.New(srerrors.IPC, "stale_token", "auth token is stale (created before service start)")
			}
			return token, nil
		}
	}

	slog.Warn("ml_auth_token_missing_timestamp",
		slog.String("path", path),
		slog.String("reason", "accepting for backwards compatibility"))
	return content, nil
}
