// Package resolver fetches the IP ranges that mail providers publish for
// their outbound SMTP servers.
//
// Two strategies are provided: a JSON endpoint list (Office 365) and DNS TXT
// netblock records (Google Workspace). Both tolerate upstream failures by
// contributing fewer ranges rather than failing the run.
package resolver

import (
	"context"

	"github.com/yourusername/nsgwatch/internal/models"
)

// AuthoritativeSource produces the set of ranges a provider currently publishes
type AuthoritativeSource interface {
	Resolve(ctx context.Context) (models.CIDRSet, error)
}
