package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "cmdgate"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanEvents — поток событий жизненного цикла команд (pending/approved/denied/...).
	RedisChanEvents = RedisNamespace + ":events"
	// RedisChanWhitelistSignal — оперативные правки уровня: "command:level" или "command:remove".
	RedisChanWhitelistSignal = RedisNamespace + ":whitelist:signal"
)
