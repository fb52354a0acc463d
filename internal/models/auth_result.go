package models

import "time"

// ClientMeta — сведения о клиенте, сохраняемые вместе с refresh-токеном.
// Носят справочный характер и в проверках не участвуют.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// AuthResult — результат входа или обновления токенов.
//
// Описание:
//   - Member — участник без хэша пароля;
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT для ротации; на сервере хранится только его хэш;
//   - TokenFamily — идентификатор цепочки ротаций, рождённой одним входом.
type AuthResult struct {
	Member           *Member
	AccessToken      string
	RefreshToken     string
	TokenFamily      string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
