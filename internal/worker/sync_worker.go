package worker

import (
	"context"

	"github.com/alpharequest/requestmanager/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartSyncWorker launches the reconciliation loop. The returned stop
// function cancels the loop and is safe to call more than once.
func StartSyncWorker(ctx context.Context, syncService *service.SyncService) context.CancelFunc {
	if syncService == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go syncService.Run(ctx)
	return cancel
}
