// Package push wraps the fire-and-forget delivery transport. Delivery
// is accept/reject only; there is no confirmation beyond the immediate
// error.
package push

import "context"

type Sender interface {
	Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}
