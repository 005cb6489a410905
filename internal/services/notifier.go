package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// NotifierService talks to the notification collaborator: it lists the
// operator ids eligible for out-of-band alerts and pushes chat alerts to
// them, reaching operators who have no socket connected right now.
type NotifierService struct {
	BaseURL string
}

func NewNotifierService(baseURL string) *NotifierService {
	return &NotifierService{BaseURL: baseURL}
}

func (n *NotifierService) ListActiveOperatorIDs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/api/operators/active", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("operator directory returned status: %d", resp.StatusCode)
	}

	var payload struct {
		OperatorIDs []string `json:"operator_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.OperatorIDs, nil
}

func (n *NotifierService) SendChatAlert(ctx context.Context, operatorID, conversationID, preview string) error {
	payload := map[string]interface{}{
		"user_id": operatorID,
		"type":    "support_message",
		"data": map[string]string{
			"conversation_id": conversationID,
			"preview":         preview,
		},
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/api/notifications/send", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send notification")
	}
	return nil
}
