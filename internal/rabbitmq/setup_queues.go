package rabbitmq

// DispatchExchange — exchange фоновых задач шлюза.
const DispatchExchange = "dispatch"

// LLMRoutingKey — ключ маршрутизации задач вызова LLM.
const LLMRoutingKey = "llm"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetDispatchQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "dispatch.llm", RoutingKey: LLMRoutingKey},
		// при необходимости дополнительные очереди для других воркеров
	}
}
