// Package credential は利用者の認証情報（メールアドレス、パスワードハッシュ、
// 管理者フラグ）を永続化する。
//
// 重複登録の判定はストアの一意制約のみで行う。事前にSELECTで存在確認を
// してからINSERTする方式は、同時登録で両方が成功する競合を生むため採らない。
package credential
