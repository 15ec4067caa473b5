package intents

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

// NewExternalReference builds a globally unique correlation string embedding
// the user, operation type, period, a timestamp, and a random suffix. The
// provider echoes it back on every payment, so asynchronous responses can be
// matched to the intent even before a provider-assigned ID exists.
func NewExternalReference(userID uuid.UUID, op enums.OperationType, year, month int, now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	period := fmt.Sprintf("%d", year)
	if month > 0 {
		period = fmt.Sprintf("%d-%02d", year, month)
	}
	return fmt.Sprintf("%s-%s-%s-%d-%s", userID, op, period, now.UnixNano(), suffix)
}
