package logs

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/Alijeyrad/clinic_backend/config"
)

// newLokiHandler pushes records to Loki in batches. Basic-auth credentials
// ride in the push URL, which net/http turns into an Authorization header.
func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, func(), error) {
	push, err := pushURL(cfg.Logging.Output.Loki)
	if err != nil {
		return nil, nil, err
	}

	lcfg, err := loki.NewDefaultConfig(push)
	if err != nil {
		return nil, nil, fmt.Errorf("loki config: %w", err)
	}
	client, err := loki.New(lcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loki client: %w", err)
	}

	h := slogloki.Option{Level: level, Client: client}.NewLokiHandler()
	return h, client.Stop, nil
}

func pushURL(c config.LokiConfig) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.Endpoint, "/") + "/loki/api/v1/push")
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("loki endpoint %q is not a URL", c.Endpoint)
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String(), nil
}
