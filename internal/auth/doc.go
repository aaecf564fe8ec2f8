// Package auth は認証サービスを提供する。
//
// 利用者の登録、ログインによるトークン発行、トークン検証（/protected）を
// 担当する。Gatewayはトークン検証をこのサービスの/protectedに委譲する。
package auth
