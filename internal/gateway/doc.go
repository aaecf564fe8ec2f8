// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、認証系のリクエストを認証サービスへ
// そのまま転送する。ファイルアップロードでは、トークン検証を認証サービスに委譲し、
// 管理者であることを確認してからオブジェクトストアへの保存とキューへの通知を行う。
package gateway
