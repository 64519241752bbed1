package endpoint

import "github.com/prometheus/client_golang/prometheus"

// Instrumentation exposes the endpoint's internal counters as Prometheus
// metrics. It is optional: a nil *Instrumentation disables all
// instrumentation calls, which are otherwise placed at the same
// suspension points the core activities already touch (send, receive,
// timeout, keepalive), so wiring metrics in never adds new synchronization.
type Instrumentation struct {
	messagesSent       prometheus.Counter
	messagesReceived   prometheus.Counter
	responsesSent      prometheus.Counter
	keepaliveTimeouts  prometheus.Counter
	messageTimeouts    prometheus.Counter
	inFlight           prometheus.Gauge
}

// NewInstrumentation registers a family of per-label endpoint metrics
// against reg and returns an Instrumentation bound to them. Passing the
// same label twice returns a collision error from the registerer, exactly
// as registering two prometheus collectors under the same labels would.
func NewInstrumentation(reg prometheus.Registerer, label string) (*Instrumentation, error) {
	constLabels := prometheus.Labels{"endpoint": label}
	inst := &Instrumentation{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "wirerpc_messages_sent_total",
			Help:        "MESSAGE packets sent by this endpoint.",
			ConstLabels: constLabels,
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "wirerpc_messages_received_total",
			Help:        "MESSAGE packets received by this endpoint.",
			ConstLabels: constLabels,
		}),
		responsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "wirerpc_responses_sent_total",
			Help:        "RESPONSE packets sent by this endpoint.",
			ConstLabels: constLabels,
		}),
		keepaliveTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "wirerpc_keepalive_timeouts_total",
			Help:        "Times this endpoint torn down due to a stale peer.",
			ConstLabels: constLabels,
		}),
		messageTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "wirerpc_message_timeouts_total",
			Help:        "SendMessage calls that gave up waiting for a response.",
			ConstLabels: constLabels,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "wirerpc_messages_in_flight",
			Help:        "MESSAGE packets currently awaiting a RESPONSE.",
			ConstLabels: constLabels,
		}),
	}
	collectors := []prometheus.Collector{
		inst.messagesSent, inst.messagesReceived, inst.responsesSent,
		inst.keepaliveTimeouts, inst.messageTimeouts, inst.inFlight,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (i *Instrumentation) sentMessage() {
	if i == nil {
		return
	}
	i.messagesSent.Inc()
	i.inFlight.Inc()
}

func (i *Instrumentation) settledMessage() {
	if i == nil {
		return
	}
	i.inFlight.Dec()
}

func (i *Instrumentation) receivedMessage() {
	if i != nil {
		i.messagesReceived.Inc()
	}
}

func (i *Instrumentation) sentResponse() {
	if i != nil {
		i.responsesSent.Inc()
	}
}

func (i *Instrumentation) keepaliveTimeout() {
	if i != nil {
		i.keepaliveTimeouts.Inc()
	}
}

func (i *Instrumentation) messageTimeout() {
	if i != nil {
		i.messageTimeouts.Inc()
	}
}
