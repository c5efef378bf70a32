package ws

import (
	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/notify"
)

func (h *Hub) publishState(state domain.SessionState) {
	data, err := encodeEvent(EventTypeState, state)
	if err != nil {
		h.logger.Error("ws: marshal state", zap.Error(err))
		return
	}
	h.last = data
	h.broadcast(data)
}

// deliverNotification consumes the pending notification only when someone is
// connected to see it; otherwise it stays in the slot for the HTTP consumer.
func (h *Hub) deliverNotification(slot *notify.Slot) {
	if len(h.clients) == 0 {
		return
	}
	slot.ConsumeFunc(func(n domain.Notification) {
		data, err := encodeEvent(EventTypeNotification, n)
		if err != nil {
			h.logger.Error("ws: marshal notification", zap.Error(err))
			return
		}
		h.broadcast(data)
	})
}
