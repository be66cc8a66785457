package toolexec

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/pkg/models"
)

type getActorDetailsArgs struct {
	TokenID      string `json:"token_id"`
	SearchPhrase string `json:"search_phrase,omitempty"`
}

// getActorDetails has no cache fallback: actor sheet data isn't tracked
// locally, so a timeout is a plain failure, not a recoverable one.
func (e *Executor) getActorDetails(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args getActorDetailsArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if args.TokenID == "" {
		return fail("token_id is required"), nil
	}

	handle := e.pending.Register(clientID, models.AwaitActorSheet)
	data, err := json.Marshal(frames.GetActorDetailsData{TokenID: args.TokenID, SearchPhrase: args.SearchPhrase})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeGetActorDetails, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	res, waitErr := handle.Await(ctx, TimeoutActorSheet)
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolGetActorDetails)
		return result{
			Success: false,
			Error:   "timeout waiting for actor details from frontend",
			Extra:   map[string]any{"request_id": handle.RequestID()},
		}, nil
	}
	if res.Err != nil {
		return fail("%v", res.Err), nil
	}
	details, valid := res.Data.(frames.ActorDetailsResultData)
	if !valid {
		return fail("unexpected actor details payload"), nil
	}
	extra := map[string]any{"token_id": details.TokenID}
	if args.SearchPhrase != "" {
		extra["matches"] = details.Matches
	} else {
		extra["fields"] = details.Fields
	}
	return ok(extra), nil
}

type modifyTokenAttributeArgs struct {
	TokenID       string   `json:"token_id"`
	AttributePath string   `json:"attribute_path"`
	Value         float64  `json:"value"`
	IsDelta       *bool    `json:"is_delta,omitempty"`
	IsBar         *bool    `json:"is_bar,omitempty"`
}

func (e *Executor) modifyTokenAttribute(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args modifyTokenAttributeArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if args.TokenID == "" || args.AttributePath == "" {
		return fail("token_id and attribute_path are required"), nil
	}
	isDelta, isBar := true, true
	if args.IsDelta != nil {
		isDelta = *args.IsDelta
	}
	if args.IsBar != nil {
		isBar = *args.IsBar
	}

	handle := e.pending.Register(clientID, models.AwaitAttributeModAck)
	data, err := json.Marshal(frames.ModifyTokenAttributeData{
		TokenID:       args.TokenID,
		AttributePath: args.AttributePath,
		Value:         args.Value,
		IsDelta:       isDelta,
		IsBar:         isBar,
	})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeModifyTokenAttr, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	res, waitErr := handle.Await(ctx, TimeoutAttributeMod)
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolModifyTokenAttribute)
		return result{
			Success: false,
			Error:   "timeout waiting for attribute modification ack",
			Extra:   map[string]any{"request_id": handle.RequestID()},
		}, nil
	}
	if res.Err != nil {
		return fail("%v", res.Err), nil
	}
	ack, valid := res.Data.(frames.ModifyAttributeResultData)
	if !valid {
		return fail("unexpected attribute ack payload"), nil
	}
	if !ack.Success {
		return fail("%s", firstNonEmpty(ack.Message, "modification failed")), nil
	}
	return ok(nil), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
