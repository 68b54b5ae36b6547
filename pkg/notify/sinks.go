package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/IBM/sarama"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// --- Console Notifier ---

type ConsoleNotifier struct {
	mu sync.Mutex
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (c *ConsoleNotifier) Name() string { return "console" }

func (c *ConsoleNotifier) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(os.Stdout, message)
	return err
}

func (c *ConsoleNotifier) Close() error { return nil }

// --- File Notifier ---

// FileNotifier appends one JSON line per message, keeping a local audit
// trail of everything the service tried to announce.
type FileNotifier struct {
	path string
	mu   sync.Mutex
	file *os.File
}

type fileEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

func NewFileNotifier(path string) (*FileNotifier, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileNotifier{path: path, file: f}, nil
}

func (f *FileNotifier) Name() string { return "file" }

func (f *FileNotifier) Send(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.NewEncoder(f.file).Encode(fileEntry{Time: time.Now().UTC(), Message: message})
}

func (f *FileNotifier) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// --- Redis Notifier ---

type RedisNotifier struct {
	client *redis.Client
	key    string
	mode   string
}

func NewRedisNotifier(addr, password string, db int, key, mode string) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisNotifier{client: rdb, key: key, mode: mode}, nil
}

func (r *RedisNotifier) Name() string { return "redis" }

func (r *RedisNotifier) Send(ctx context.Context, message string) error {
	if r.mode == "pubsub" {
		return r.client.Publish(ctx, r.key, message).Err()
	}
	return r.client.LPush(ctx, r.key, message).Err()
}

func (r *RedisNotifier) Close() error { return r.client.Close() }

// --- Kafka Notifier ---

type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(brokers []string, topic, user, password string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	if user != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = user
		config.Net.SASL.Password = password
	}
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Send(ctx context.Context, message string) error {
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.StringEncoder(message),
	})
	return err
}

func (k *KafkaNotifier) Close() error { return k.producer.Close() }

// --- RabbitMQ Notifier ---

type RabbitMQNotifier struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

func NewRabbitMQNotifier(url, exchange, routingKey, queueName string, durable bool) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if exchange != "" {
		err = ch.ExchangeDeclare(exchange, "topic", durable, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}
	if queueName != "" {
		q, _ := ch.QueueDeclare(queueName, durable, false, false, false, nil)
		ch.QueueBind(q.Name, routingKey, exchange, false, nil)
	}
	return &RabbitMQNotifier{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (r *RabbitMQNotifier) Name() string { return "rabbitmq" }

func (r *RabbitMQNotifier) Send(ctx context.Context, message string) error {
	return r.ch.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(message),
	})
}

func (r *RabbitMQNotifier) Close() error {
	r.ch.Close()
	return r.conn.Close()
}
