// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの検証、構造化リクエストログ、パニックリカバリ、
// CORS設定、ログイン試行のレート制限など、authサービスとgatewayで
// 共通して使用するミドルウェアを含む。
package middleware
