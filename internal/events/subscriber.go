package events

import "context"

// Publisher ships deliveries to whichever process holds the user's
// connections.
type Publisher interface {
	Publish(ctx context.Context, d Delivery) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(d Delivery)) error
}
