// Package apperr はサービス共通のエラー分類を提供する。
//
// 各操作は (値, error) を返し、errorは Kind を持つ *Error として表現する。
// HTTPハンドラは Kind からステータスコードと公開メッセージを決定するため、
// ストア等の内部エラーの詳細がクライアントに漏れることはない。
package apperr

import (
	"errors"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind string

const (
	// KindInvalidInput はリクエストの欠落・不正を表す。
	KindInvalidInput Kind = "InvalidInput"
	// KindConflict は識別子の重複を表す。
	KindConflict Kind = "Conflict"
	// KindUnauthorized は認証情報・トークンの不正を表す。
	KindUnauthorized Kind = "Unauthorized"
	// KindForbidden は認証済みだが権限が不足していることを表す。
	// 既存クライアントとの互換性のためHTTPステータスは401を返す。
	KindForbidden Kind = "Forbidden"
	// KindUpstreamUnavailable はストア・キュー・上流サービスに到達できないことを表す。
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	// KindInternal は想定外の失敗を表す。
	KindInternal Kind = "Internal"
)

// Error は分類付きのエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message はクライアントに返してよいメッセージ。
	Message string
	// Err は原因となった内部エラー。公開されない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は原因エラーを持たない分類付きエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーを包んだ分類付きエラーを生成する。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf はエラーチェーンから最初に見つかった Kind を返す。
// 分類されていないエラーは KindInternal として扱う。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus はエラーに対応するHTTPステータスコードを返す。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized, KindForbidden:
		return http.StatusUnauthorized
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage はクライアントに返すメッセージを返す。
// 分類されていないエラーの内容は返さない。
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
