package worker

import (
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/service"
)

// StartNotificationWorker registers the delivery handlers of the notification
// service on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil || dispatcher == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}
