// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayがauthサービスへリクエストを転送する際と、アップロードイベントを
// キューへ送信する際に使用する。上流のステータスコードとボディは
// 解釈せずに呼び出し元へ返す。
package httpclient
