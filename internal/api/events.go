package api

// DashboardEvents adapts the websocket Hub to transport.EventSink, so the
// line-protocol server can notify dashboard clients without depending on
// the api package directly.
type DashboardEvents struct {
	Hub *Hub
}

func (d DashboardEvents) Registered(userID string) {
	if d.Hub == nil {
		return
	}
	d.Hub.BroadcastEvent(DashboardEvent{
		Type:    EventUserRegistered,
		Payload: UserRegisteredPayload{UserID: userID},
	})
}

func (d DashboardEvents) LoginAttempted(userID string, accepted bool, similarity float64) {
	if d.Hub == nil {
		return
	}
	d.Hub.BroadcastEvent(DashboardEvent{
		Type: EventLoginAttempt,
		Payload: LoginAttemptPayload{
			UserID:     userID,
			Accepted:   accepted,
			Similarity: similarity,
		},
	})
}
