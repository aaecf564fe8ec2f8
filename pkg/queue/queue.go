// Package queue はアップロードイベントを後段ワーカーのキューへ発行する。
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/uploadmesh/pkg/event"
	"github.com/nao1215/uploadmesh/pkg/httpclient"
)

// Publisher はイベントをキューに発行する。
type Publisher interface {
	// Publish はイベントを1件発行する。発行できなかった場合はエラーを返す。
	Publish(ctx context.Context, ev *event.Event) error
}

// HTTPPublisher はHTTP経由でキューにイベントを発行する。
// イベントのJSONを <baseURL>/queues/<queueName>/messages にPOSTする。
type HTTPPublisher struct {
	// client はキューサービスへのHTTPクライアント。
	client *httpclient.Client
	// path はメッセージ投入先のパス。
	path string
}

// NewHTTPPublisher は新しいHTTPPublisherを生成する。
func NewHTTPPublisher(baseURL, queueName string, opts ...httpclient.Option) *HTTPPublisher {
	return &HTTPPublisher{
		client: httpclient.New(baseURL, opts...),
		path:   "/queues/" + url.PathEscape(queueName) + "/messages",
	}
}

// Publish はイベントをキューに発行する。
func (p *HTTPPublisher) Publish(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return fmt.Errorf("発行するイベントがnilです")
	}
	if err := p.client.PostJSON(ctx, p.path, ev, nil); err != nil {
		return fmt.Errorf("イベント %s の発行に失敗: %w", ev.ID, err)
	}
	return nil
}

// discard はイベントをログに記録するだけのPublisher。
type discard struct {
	logger *slog.Logger
}

// Discard はキューが設定されていない開発環境向けのPublisherを返す。
// イベントはログに記録されるだけで、どこにも送信されない。
func Discard(logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return discard{logger: logger}
}

// Publish はイベントをログに記録する。
func (d discard) Publish(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return fmt.Errorf("発行するイベントがnilです")
	}
	d.logger.InfoContext(ctx, "キュー未設定のためイベントを破棄しました",
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.EventType)),
		slog.String("aggregate_id", ev.AggregateID),
	)
	return nil
}
