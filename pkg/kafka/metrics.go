package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consumerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_processed_total",
		Help: "Kafka messages handled successfully",
	}, []string{"topic", "consumer_group"})

	consumerMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_failed_total",
		Help: "Kafka messages that exhausted handler retries",
	}, []string{"topic", "consumer_group"})

	consumerMessagesDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_duplicate_total",
		Help: "Kafka messages skipped as already processed",
	}, []string{"topic", "consumer_group"})

	consumerProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_consumer_processing_duration_seconds",
		Help:    "Duration of Kafka message handling in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic", "consumer_group"})

	producerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_messages_published_total",
		Help: "Kafka messages published",
	}, []string{"topic"})

	producerPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_errors_total",
		Help: "Kafka publish failures",
	}, []string{"topic"})

	consumerDLQPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_dlq_published_total",
		Help: "Kafka messages forwarded to a dead-letter topic",
	}, []string{"topic", "consumer_group"})
)
