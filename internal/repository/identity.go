package repository

import (
	"context"
)

// DeliveryIdentity answers whether senders have a connected delivery
// credential. Scheduling fails closed when any recipient's assigned sender
// does not.
type DeliveryIdentity interface {
	// Connected reports credential status per sender id. Unknown ids are
	// reported as false.
	Connected(ctx context.Context, senderIDs []string) (map[string]bool, error)
}
