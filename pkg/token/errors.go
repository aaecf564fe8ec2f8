package token

import "errors"

// Kind はトークン検証失敗の種類を表す。
// HTTP上はいずれも401だが、メトリクスとテストのために区別する。
type Kind string

const (
	// KindMalformed は署名付き構造として解釈できないトークン。
	KindMalformed Kind = "Malformed"
	// KindBadSignature は署名が一致しないトークン。
	KindBadSignature Kind = "BadSignature"
	// KindExpired は署名は正しいが有効期限を過ぎたトークン。
	KindExpired Kind = "Expired"
)

// Error はトークン検証の失敗を表す。
type Error struct {
	// Kind は失敗の種類。
	Kind Kind
	// Err はgolang-jwtが返した原因エラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return "トークンが無効です: " + string(e.Kind)
	}
	return "トークンが無効です: " + string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はエラーチェーンからトークン検証失敗の種類を取り出す。
// トークン検証のエラーでなければ空文字列を返す。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
