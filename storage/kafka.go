package storage

import (
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/janelia-flyem/neuropil/npil"

	"github.com/Shopify/sarama"
)

var (
	// KafkaTopicPrefix is the kafka topic prefix for mutation logging
	KafkaTopicPrefix string
)

var (
	kafkaMu       sync.RWMutex
	kafkaProducer sarama.AsyncProducer

	// the kafka topic for mutation messages
	kafkaMutationTopicName string

	// called with messages that could not be delivered
	kafkaFailedHandler func(topic string, msg []byte)
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * npil.Kilo

// KafkaConfig describes kafka servers and the topic used for mutation messages.
type KafkaConfig struct {
	TopicMutations string   `toml:"topic_mutations"` // if supplied, overrides the default mutation topic
	TopicPrefix    string   `toml:"topic_prefix"`    // if supplied, prefixed to the mutation topic
	Servers        []string `toml:"servers"`
	BufferSize     int      `toml:"buffer_size"` // max messages buffered by the producer
}

// KafkaMutationTopic returns the topic name used for mutation messages.
func KafkaMutationTopic() string {
	kafkaMu.RLock()
	defer kafkaMu.RUnlock()
	return kafkaMutationTopicName
}

// SetKafkaFailedHandler sets a function that receives messages kafka could not deliver.
func SetKafkaFailedHandler(f func(topic string, msg []byte)) {
	kafkaMu.Lock()
	kafkaFailedHandler = f
	kafkaMu.Unlock()
}

// Initialize connects the producer if any servers are configured.
func (kc KafkaConfig) Initialize(hostID string) error {
	if len(kc.Servers) == 0 {
		return nil
	}
	topic := kc.TopicMutations
	if topic == "" {
		topic = "neuropil-mutations-" + hostID
	}
	reg, err := regexp.Compile(`[^a-zA-Z0-9\\._\\-]+`)
	if err != nil {
		return err
	}
	if kc.TopicPrefix != "" {
		KafkaTopicPrefix = kc.TopicPrefix
	}
	topic = KafkaTopicPrefix + reg.ReplaceAllString(topic, "-")

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	producer, err := sarama.NewAsyncProducer(kc.Servers, config)
	if err != nil {
		return err
	}

	kafkaMu.Lock()
	kafkaProducer = producer
	kafkaMutationTopicName = topic
	kafkaMu.Unlock()

	go func() {
		for err := range producer.Errors() {
			npil.Errorf("error on kafka send: %v\n", err)
			kafkaMu.RLock()
			handler := kafkaFailedHandler
			kafkaMu.RUnlock()
			if handler != nil && err.Msg != nil && err.Msg.Value != nil {
				value, _ := err.Msg.Value.Encode()
				handler(err.Msg.Topic, value)
			}
		}
	}()
	npil.Infof("Kafka topic for mutations: %s\n", topic)
	return nil
}

// KafkaShutdown makes sure that the kafka queue is flushed before stopping.
func KafkaShutdown() {
	kafkaMu.Lock()
	producer := kafkaProducer
	kafkaProducer = nil
	kafkaMu.Unlock()
	if producer == nil {
		npil.Debugf("Kafka producer was nil so unnecessary to close.\n")
		return
	}
	if err := producer.Close(); err != nil {
		npil.Errorf("Kafka producer had error on close: %v\n", err)
	} else {
		npil.Infof("Successfully shut down kafka producer.\n")
	}
}

// KafkaEnabled returns true if a producer is connected.
func KafkaEnabled() bool {
	kafkaMu.RLock()
	defer kafkaMu.RUnlock()
	return kafkaProducer != nil
}

// KafkaProduceMsg sends a message to kafka keyed by the current time.  It is a no-op if
// kafka is not configured.
func KafkaProduceMsg(value []byte, topicName string) error {
	kafkaMu.RLock()
	producer := kafkaProducer
	kafkaMu.RUnlock()
	if producer == nil {
		return nil
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	producer.Input() <- &sarama.ProducerMessage{Topic: topicName, Value: sarama.ByteEncoder(value), Key: timeKey}
	return nil
}
