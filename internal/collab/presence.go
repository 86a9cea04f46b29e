package collab

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// PresenceManager tracks cursors and selections per connection, so one user
// with two tabs shows two cursors.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update stores a copy of p, keeping only selected ids that pass exists.
func (pm *PresenceManager) Update(clientID string, p PresencePayload, exists func(id string) bool) *PresencePayload {
	if exists != nil && len(p.Selection) > 0 {
		kept := make([]string, 0, len(p.Selection))
		for _, id := range p.Selection {
			if exists(id) {
				kept = append(kept, id)
			}
		}
		p.Selection = kept
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[clientID] = &p
	return &p
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, clientID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
