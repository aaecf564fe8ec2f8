// Package token は署名付き・期限付きトークンの発行と検証を提供する。
//
// トークンはHS256で署名したJWTで、主体（メールアドレス）と管理者フラグを
// 埋め込む。検証はストアに問い合わせずに署名と有効期限のみで行うため、
// 発行後の管理者フラグの変更や失効は有効期限まで反映されない。
package token
