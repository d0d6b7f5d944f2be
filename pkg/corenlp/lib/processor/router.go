// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package processor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"
)

// Default topics used by NewRouter.
const (
	TopicRecords = "records"
	TopicSuccess = string(Success)
	TopicFailure = string(Failure)
)

// RouterConfig wires a Processor between a subscriber and a publisher.
type RouterConfig struct {
	Subscriber message.Subscriber
	Publisher  message.Publisher

	InputTopic   string
	SuccessTopic string
	FailureTopic string

	Logger *zap.Logger
}

// NewRouter returns a watermill router that consumes records from the input
// topic and publishes each processed record to the topic of its
// relationship. Message metadata carries record attributes.
func NewRouter(p *Processor, cfg RouterConfig) (*message.Router, error) {
	if cfg.Subscriber == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("router needs a subscriber and a publisher")
	}
	if cfg.InputTopic == "" {
		cfg.InputTopic = TopicRecords
	}
	if cfg.SuccessTopic == "" {
		cfg.SuccessTopic = TopicSuccess
	}
	if cfg.FailureTopic == "" {
		cfg.FailureTopic = TopicFailure
	}

	router, err := message.NewRouter(message.RouterConfig{}, NewLoggerAdapter(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler(
		"corenlp_processor",
		cfg.InputTopic,
		cfg.Subscriber,
		func(msg *message.Message) error {
			out, rel := p.Process(msg.Context(), RecordFromMessage(msg))
			topic := cfg.SuccessTopic
			if rel == Failure {
				topic = cfg.FailureTopic
			}
			routed := out.Message()
			middleware.SetCorrelationID(middleware.MessageCorrelationID(msg), routed)
			return cfg.Publisher.Publish(topic, routed)
		},
	)
	return router, nil
}

// RecordFromMessage converts a watermill message into a Record.
func RecordFromMessage(msg *message.Message) Record {
	attrs := make(map[string]string, len(msg.Metadata))
	for k, v := range msg.Metadata {
		attrs[k] = v
	}
	return Record{Content: msg.Payload, Attributes: attrs}
}

// Message converts r into a new watermill message.
func (r Record) Message() *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), r.Content)
	for k, v := range r.Attributes {
		msg.Metadata.Set(k, v)
	}
	return msg
}

// Run blocks until the router stops or ctx is done.
func Run(ctx context.Context, router *message.Router) error {
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("running processor router: %w", err)
	}
	return nil
}
