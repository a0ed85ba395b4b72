package notify

import "context"

// Repository is typed access to the backend notification resource. It does
// not retry; callers decide what to do with a NetworkError.
type Repository interface {
	List(ctx context.Context, filters Filters) (ListResult, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	DeleteAllRead(ctx context.Context) error
	Create(ctx context.Context, payload CreatePayload) (Notification, error)
	CreateBulk(ctx context.Context, payload BulkPayload) ([]Notification, error)
	GetPreferences(ctx context.Context) (Preferences, error)
	SetPreferences(ctx context.Context, prefs Preferences) (Preferences, error)
}
