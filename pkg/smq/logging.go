package smq

import (
	"errors"
	"time"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// debugLog logs a debug message if a logger is configured.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) event(connID string, dir log.Direction, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerClient,
		Category:     cat,
		BrokerURL:    c.config.URL,
		EphemeralID:  c.etid.Load(),
	}
}

// logMessage records a decoded message at the wire layer.
func (c *Client) logMessage(connID string, dir log.Direction, m wire.Message) {
	if c.protoLog == nil || m == nil {
		return
	}
	ev := c.event(connID, dir, log.CategoryMessage)
	ev.Layer = log.LayerWire
	if ctrl := log.NewControlMsgEvent(m); ctrl != nil {
		ev.Category = log.CategoryControl
		ev.ControlMsg = ctrl
	} else {
		ev.Message = log.NewMessageEvent(m)
	}
	c.protoLog.Log(ev)
}

func (c *Client) logState(connID string, from, to State, reason string) {
	if c.protoLog == nil {
		return
	}
	ev := c.event(connID, log.DirectionIn, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	c.protoLog.Log(ev)
}

func (c *Client) logError(connID string, err error, context string) {
	if c.protoLog == nil || err == nil {
		return
	}
	data := &log.ErrorEventData{
		Layer:   log.LayerClient,
		Message: err.Error(),
		Context: context,
	}
	var e *Error
	if errors.As(err, &e) {
		code := int(e.Reason)
		data.Code = &code
	}
	ev := c.event(connID, log.DirectionIn, log.CategoryError)
	ev.Error = data
	c.protoLog.Log(ev)
}
