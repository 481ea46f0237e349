package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateInvoiceNumber produces an INV-YYYYMMDD-XXXXXX reference. The
// suffix comes from a fresh UUID, so collisions within a day are as
// unlikely as UUID prefix collisions.
func GenerateInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix)
}
