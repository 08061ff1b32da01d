package dispatch

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/chat-gateway/internal/rabbitmq"
)

// LLMTask — задача вызова языковой модели, передаваемая воркеру
// через очередь сообщений.
type LLMTask struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	Mode        string `json:"mode"`
	UserUID     string `json:"user_uid"`
	UserName    string `json:"user_name"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

// QueuePublisher публикует задачу вызова LLM в очередь сообщений.
type QueuePublisher interface {
	PublishLLMTask(task LLMTask) error
}

// AMQPQueue реализует QueuePublisher поверх канала RabbitMQ.
type AMQPQueue struct {
	Ch *amqp.Channel
}

// PublishLLMTask публикует задачу в exchange фоновых задач.
func (q *AMQPQueue) PublishLLMTask(task LLMTask) error {
	return rabbitmq.PublishMessage(q.Ch, rabbitmq.DispatchExchange, rabbitmq.LLMRoutingKey, task)
}
