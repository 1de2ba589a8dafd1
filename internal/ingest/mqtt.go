package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coldwatch/internal/models"
	"coldwatch/internal/service"
	commonmqtt "coldwatch/pkg/common/mqtt"

	"go.uber.org/zap"
)

// Ingestor 读数摄取接口（由 service.IngestService 实现）
type Ingestor interface {
	Ingest(ctx context.Context, input service.IngestInput) (*models.Reading, error)
}

// Subscriber 订阅接口（由 pkg/common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler commonmqtt.MessageHandler) error
}

// TelemetryMessage 遥测报文（冷柜传感器上报格式）
type TelemetryMessage struct {
	FreezerID      string   `json:"freezer_id,omitempty"` // 缺省时从主题提取
	RecordedAt     string   `json:"recorded_at"`          // RFC 3339
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	TransmissionOK bool     `json:"transmission_ok"`
	ErrorMessage   *string  `json:"error_message,omitempty"`
}

// TelemetryConsumer MQTT 遥测消费者
// 订阅 lab/freezer/+/telemetry，解码报文后交给摄取管线
type TelemetryConsumer struct {
	ingestor Ingestor
	logger   *zap.Logger
}

// NewTelemetryConsumer 创建遥测消费者
func NewTelemetryConsumer(ingestor Ingestor, logger *zap.Logger) *TelemetryConsumer {
	return &TelemetryConsumer{
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start 订阅遥测主题
func (c *TelemetryConsumer) Start(ctx context.Context, sub Subscriber, topic string, qos byte) error {
	err := sub.Subscribe(topic, qos, func(msgTopic string, payload []byte) error {
		return c.handleMessage(ctx, msgTopic, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe telemetry topic: %w", err)
	}

	c.logger.Info("Telemetry consumer started",
		zap.String("topic", topic),
	)

	return nil
}

// handleMessage 解码并摄取单条遥测报文
func (c *TelemetryConsumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	var msg TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode telemetry message: %w", err)
	}

	freezerID := msg.FreezerID
	if freezerID == "" {
		freezerID = freezerIDFromTopic(topic)
	}
	if freezerID == "" {
		return fmt.Errorf("cannot determine freezer_id from message or topic %s", topic)
	}

	recordedAt, err := parseRecordedAt(msg.RecordedAt)
	if err != nil {
		return fmt.Errorf("invalid recorded_at %q: %w", msg.RecordedAt, err)
	}

	input := service.IngestInput{
		FreezerID:      freezerID,
		RecordedAt:     recordedAt,
		Temperature:    msg.Temperature,
		Humidity:       msg.Humidity,
		TransmissionOK: msg.TransmissionOK,
		ErrorMessage:   msg.ErrorMessage,
	}

	reading, err := c.ingestor.Ingest(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to ingest telemetry: %w", err)
	}

	c.logger.Debug("Telemetry ingested",
		zap.String("freezer_id", freezerID),
		zap.String("reading_id", reading.ReadingID),
		zap.String("status", string(reading.Status)),
	)

	return nil
}

// freezerIDFromTopic 从主题提取冷柜 ID（lab/freezer/<id>/telemetry）
func freezerIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 4 && parts[0] == "lab" && parts[1] == "freezer" {
		return parts[2]
	}
	return ""
}

// parseRecordedAt 解析上报时间；缺省时用当前时间
func parseRecordedAt(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, value)
}
