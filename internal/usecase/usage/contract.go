package usage

import (
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	domquota "github.com/kailas-cloud/studybuddy/internal/domain/quota"
)

// QuotaReader provides read-only access to a session's quota state.
type QuotaReader interface {
	Session() string
	Limit(c category.Category) int
	Used(c category.Category) int
	RemainingForCategory(c category.Category) int
	ResetDate() domquota.Date
	Location() *time.Location
}
