package adapter

import "context"

// IdentificationService is the port to the (external) identification flow.
// The engine only consumes the binary "may this profile send yet" signal
// and the snapshot it produces on completion.
type IdentificationService interface {
	CanSendMessage(ctx context.Context, profileID string) (bool, error)
	UserContext(ctx context.Context, profileID string) (*UserData, error)
}
