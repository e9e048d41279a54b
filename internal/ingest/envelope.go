package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/recipient"
)

// Envelope types. Email deliveries arrive in the SNS notification shape
// wrapping an SES receipt; HTTP deliveries use the same outer shape.
const (
	EnvelopeNotification = "Notification"
	EnvelopeHTTPPost     = "HTTPPost"

	notificationReceived = "Received"
)

// Envelope is a decoded queue message body. Fields stay raw until
// extraction so shape errors can be told apart from malformed JSON.
type Envelope map[string]json.RawMessage

// ParseEnvelope decodes body, which must be a JSON object.
func ParseEnvelope(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &InvalidPayloadError{Err: errors.New("not a JSON object")}
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &InvalidPayloadError{Err: err}
	}
	return env, nil
}

func (e Envelope) stringField(key string) (string, bool) {
	raw, ok := e[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (e Envelope) stringsField(key string) ([]string, bool) {
	raw, ok := e[key]
	if !ok {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, false
	}
	return list, true
}

func (e Envelope) objectField(key string) (Envelope, bool) {
	raw, ok := e[key]
	if !ok {
		return nil, false
	}
	obj, err := ParseEnvelope(raw)
	if err != nil {
		return nil, false
	}
	return obj, true
}

// EnvelopeExtractor turns envelopes into backup result metadata. Only
// envelopes published to Channel with a recipient matching Filter are
// accepted.
type EnvelopeExtractor struct {
	Channel string
	Filter  recipient.Filter
}

func (x EnvelopeExtractor) Extract(env Envelope) (*models.BackupResultMeta, error) {
	typ, ok := env.stringField("Type")
	if !ok {
		return nil, extractErrorf("missing Type")
	}
	if arn, _ := env.stringField("TopicArn"); arn != x.Channel {
		return nil, extractErrorf("unexpected channel %q", arn)
	}
	raw, ok := env.stringField("Message")
	if !ok {
		return nil, extractErrorf("Message is not a string")
	}
	message, err := ParseEnvelope([]byte(raw))
	if err != nil {
		return nil, extractErrorf("Message is not a JSON object")
	}

	switch typ {
	case EnvelopeNotification:
		return x.extractEmail(message)
	case EnvelopeHTTPPost:
		return x.extractHTTPPost(message)
	default:
		return nil, extractErrorf("unexpected Type %q", typ)
	}
}

func (x EnvelopeExtractor) extractEmail(message Envelope) (*models.BackupResultMeta, error) {
	if nt, _ := message.stringField("notificationType"); nt != notificationReceived {
		return nil, extractErrorf("unexpected notificationType %q", nt)
	}
	mail, ok := message.objectField("mail")
	if !ok {
		return nil, extractErrorf("missing mail")
	}
	messageID, ok := mail.stringField("messageId")
	if !ok || !validDeliveryID(messageID) {
		return nil, extractErrorf("invalid mail.messageId")
	}
	receipt, ok := message.objectField("receipt")
	if !ok {
		return nil, extractErrorf("missing receipt")
	}
	recipients, ok := receipt.stringsField("recipients")
	if !ok {
		return nil, extractErrorf("receipt.recipients is not a string list")
	}

	matching := recipient.ParseAll(recipients, &x.Filter)
	if len(matching) == 0 {
		return nil, extractErrorf("no valid recipients")
	}
	first := matching[0]
	return &models.BackupResultMeta{
		DeliveryType: models.DeliveryTypeEmail,
		ClientID:     first.ClientID,
		ClientKey:    first.ClientKey,
		BackupType:   first.BackupType,
		BackupID:     models.DeliveryTypeEmail + "/" + messageID,
	}, nil
}

func (x EnvelopeExtractor) extractHTTPPost(message Envelope) (*models.BackupResultMeta, error) {
	deliveryID, ok := message.stringField("deliveryId")
	if !ok || !validDeliveryID(deliveryID) {
		return nil, extractErrorf("invalid deliveryId")
	}
	backupType, _ := message.stringField("backupType")
	clientID, _ := message.stringField("clientId")
	clientKey, _ := message.stringField("clientKey")
	if !recipient.IsValidBackupType(backupType) || !recipient.IsValidClientID(clientID) || !recipient.IsValidClientKey(clientKey) {
		return nil, extractErrorf("invalid client identity")
	}
	return &models.BackupResultMeta{
		DeliveryType: models.DeliveryTypeHTTP,
		ClientID:     clientID,
		ClientKey:    clientKey,
		BackupType:   backupType,
		BackupID:     models.DeliveryTypeHTTP + "/" + deliveryID,
	}, nil
}

// validDeliveryID rejects ids that would escape their content key prefix.
func validDeliveryID(id string) bool {
	return id != "" && !strings.Contains(id, "/") && !strings.Contains(id, "..")
}

// NewEmailEnvelope builds the queue body announcing a received email.
func NewEmailEnvelope(channel, messageID string, recipients []string) ([]byte, error) {
	message, err := json.Marshal(map[string]any{
		"notificationType": notificationReceived,
		"mail":             map[string]any{"messageId": messageID},
		"receipt":          map[string]any{"recipients": recipients},
	})
	if err != nil {
		return nil, err
	}
	return wrap(EnvelopeNotification, channel, message)
}

// NewHTTPPostEnvelope builds the queue body announcing an HTTP delivery.
func NewHTTPPostEnvelope(channel, deliveryID, backupType, clientID, clientKey string) ([]byte, error) {
	message, err := json.Marshal(map[string]string{
		"deliveryId": deliveryID,
		"backupType": backupType,
		"clientId":   clientID,
		"clientKey":  clientKey,
	})
	if err != nil {
		return nil, err
	}
	return wrap(EnvelopeHTTPPost, channel, message)
}

func wrap(typ, channel string, message []byte) ([]byte, error) {
	return json.Marshal(map[string]string{
		"Type":     typ,
		"TopicArn": channel,
		"Message":  string(message),
	})
}
