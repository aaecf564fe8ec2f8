// Package event はサービス間でキューを通して受け渡すイベントの封筒を定義する。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

// AggregateTypeFile はアップロードされたファイルを表す。
const AggregateTypeFile AggregateType = "File"

// Type はイベントの種類を表す。
type Type string

// TypeFileUploaded はファイルがオブジェクトストアに保存されたことを表す。
// 後段のワーカー（動画変換など）はこのイベントを起点に処理を開始する。
const TypeFileUploaded Type = "FileUploaded"

// Event はキューに発行される不変のイベントレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時（UTC）。
	CreatedAt time.Time `json:"created_at"`
}

// FileUploadedData はFileUploadedイベントのデータ。
type FileUploadedData struct {
	// FileID はオブジェクトストア上のキー。
	FileID string `json:"file_id"`
	// Filename はクライアントが送信した元のファイル名。
	Filename string `json:"filename"`
	// ContentType はファイルのMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
	// Owner はアップロードした管理者のメールアドレス。
	Owner string `json:"owner"`
}
