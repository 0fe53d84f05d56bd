// ABOUTME: Action dispatch table mapping host commands onto Caster operations
// ABOUTME: Decodes positional JSON arguments and reports results through a responder
package cast

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Action names a host command.
type Action string

const (
	ActionSetup                  Action = "setup"
	ActionInitialize             Action = "initialize"
	ActionRequestSession         Action = "requestSession"
	ActionSelectRoute            Action = "selectRoute"
	ActionSetReceiverVolumeLevel Action = "setReceiverVolumeLevel"
	ActionSetReceiverMuted       Action = "setReceiverMuted"
	ActionSendMessage            Action = "sendMessage"
	ActionAddMessageListener     Action = "addMessageListener"
	ActionLoadMedia              Action = "loadMedia"
	ActionMediaPlay              Action = "mediaPlay"
	ActionMediaPause             Action = "mediaPause"
	ActionMediaSeek              Action = "mediaSeek"
	ActionSetMediaVolume         Action = "setMediaVolume"
	ActionMediaStop              Action = "mediaStop"
	ActionMediaEditTracksInfo    Action = "mediaEditTracksInfo"
	ActionQueueLoad              Action = "queueLoad"
	ActionQueueJumpToItem        Action = "queueJumpToItem"
	ActionSessionStop            Action = "sessionStop"
	ActionSessionLeave           Action = "sessionLeave"
	ActionStartRouteScan         Action = "startRouteScan"
	ActionStopRouteScan          Action = "stopRouteScan"
)

// Response is one reply to a dispatched action. Keep is set on replies
// that will be followed by more, like route scan updates.
type Response struct {
	Payload json.RawMessage
	Err     *Error
	Keep    bool
}

type handler func(c *Caster, args []json.RawMessage, respond func(Response)) error

var actions = map[Action]handler{
	ActionSetup: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.Setup())
		return nil
	},
	ActionInitialize: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var appID string
		if err := decodeArgs(args, 1, &appID); err != nil {
			return err
		}
		go respondErr(respond, c.Initialize(appID))
		return nil
	},
	ActionRequestSession: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondJoin(respond, c.RequestSession())
		return nil
	},
	ActionSelectRoute: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var routeID string
		if err := decodeArgs(args, 1, &routeID); err != nil {
			return err
		}
		go respondJoin(respond, c.SelectRoute(routeID))
		return nil
	},
	ActionSetReceiverVolumeLevel: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var level float64
		if err := decodeArgs(args, 1, &level); err != nil {
			return err
		}
		go respondErr(respond, c.SetReceiverVolumeLevel(level))
		return nil
	},
	ActionSetReceiverMuted: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var muted bool
		if err := decodeArgs(args, 1, &muted); err != nil {
			return err
		}
		go respondErr(respond, c.SetReceiverMuted(muted))
		return nil
	},
	ActionSendMessage: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var namespace, message string
		if err := decodeArgs(args, 2, &namespace, &message); err != nil {
			return err
		}
		go respondErr(respond, c.SendMessage(namespace, message))
		return nil
	},
	ActionAddMessageListener: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var namespace string
		if err := decodeArgs(args, 1, &namespace); err != nil {
			return err
		}
		go respondErr(respond, c.AddMessageListener(namespace))
		return nil
	},
	ActionLoadMedia: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		req, err := decodeLoadMedia(args)
		if err != nil {
			return err
		}
		go respondMedia(respond, c.LoadMedia(req))
		return nil
	},
	ActionMediaPlay: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.MediaPlay())
		return nil
	},
	ActionMediaPause: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.MediaPause())
		return nil
	},
	ActionMediaStop: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.MediaStop())
		return nil
	},
	ActionMediaSeek: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var position float64
		var resumeState string
		if err := decodeArgs(args, 1, &position, &resumeState); err != nil {
			return err
		}
		go respondErr(respond, c.MediaSeek(SeekRequest{Position: position, ResumeState: ParseResumeState(resumeState)}))
		return nil
	},
	ActionSetMediaVolume: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var level *float64
		var muted *bool
		if err := decodeArgs(args, 0, &level, &muted); err != nil {
			return err
		}
		go respondErr(respond, c.SetMediaVolume(level, muted))
		return nil
	},
	ActionMediaEditTracksInfo: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var trackIDs []int64
		if len(args) > 0 {
			trackIDs = parseTrackIDs(args[0])
		}
		var style *TextTrackStyle
		if len(args) > 1 && !isNull(args[1]) {
			var hs hostTextTrackStyle
			if err := json.Unmarshal(args[1], &hs); err != nil {
				return newError(CodeInvalidParameter, "text track style: %v", err)
			}
			s := hs.toStyle()
			style = &s
		}
		go respondErr(respond, c.MediaEditTracksInfo(trackIDs, style))
		return nil
	},
	ActionQueueLoad: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		if len(args) < 1 {
			return newError(CodeInvalidParameter, "queueLoad expects a request")
		}
		req, err := decodeQueueLoad(args[0])
		if err != nil {
			return err
		}
		go respondMedia(respond, c.QueueLoad(req))
		return nil
	},
	ActionQueueJumpToItem: func(c *Caster, args []json.RawMessage, respond func(Response)) error {
		var itemID float64
		if err := decodeArgs(args, 1, &itemID); err != nil {
			return err
		}
		if itemID != math.Trunc(itemID) {
			return newError(CodeInvalidParameter, "item id %v is not a whole number", itemID)
		}
		go respondErr(respond, c.QueueJumpToItem(int(itemID)))
		return nil
	},
	ActionSessionStop: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.SessionStop())
		return nil
	},
	ActionSessionLeave: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.SessionLeave())
		return nil
	},
	ActionStartRouteScan: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		c.StartRouteScan(func(res ScanResult) {
			if res.Err != nil {
				respond(Response{Err: AsError(res.Err)})
				return
			}
			respond(Response{Payload: res.Payload, Keep: true})
		})
		return nil
	},
	ActionStopRouteScan: func(c *Caster, _ []json.RawMessage, respond func(Response)) error {
		go respondErr(respond, c.StopRouteScan())
		return nil
	},
}

// Execute runs action with positional JSON args and reports through
// respond. It returns false when the action is unknown. Argument errors
// are reported through respond as invalid_parameter.
func (c *Caster) Execute(action string, args []json.RawMessage, respond func(Response)) bool {
	h, ok := actions[Action(action)]
	if !ok {
		return false
	}
	if err := h(c, args, respond); err != nil {
		log.Printf("cast: %s rejected: %v", action, err)
		respond(Response{Err: AsError(err)})
	}
	return true
}

func respondErr(respond func(Response), ch <-chan error) {
	if err := <-ch; err != nil {
		respond(Response{Err: AsError(err)})
		return
	}
	respond(Response{})
}

func respondJoin(respond func(Response), ch <-chan JoinResult) {
	res := <-ch
	if res.Err != nil {
		respond(Response{Err: AsError(res.Err)})
		return
	}
	respond(Response{Payload: res.Payload})
}

func respondMedia(respond func(Response), ch <-chan MediaResult) {
	res := <-ch
	if res.Err != nil {
		respond(Response{Err: AsError(res.Err)})
		return
	}
	respond(Response{Payload: res.Payload})
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeArgs decodes args positionally into dst. The first required
// arguments must be present and non-null; the rest may be missing or null.
func decodeArgs(args []json.RawMessage, required int, dst ...any) error {
	if len(args) < required {
		return newError(CodeInvalidParameter, "expected %d arguments, got %d", required, len(args))
	}
	for i, d := range dst {
		if i >= len(args) || isNull(args[i]) {
			if i < required {
				return newError(CodeInvalidParameter, "argument %d is required", i)
			}
			continue
		}
		if err := json.Unmarshal(args[i], d); err != nil {
			return newError(CodeInvalidParameter, "argument %d: %v", i, err)
		}
	}
	return nil
}

// parseTrackIDs keeps the whole-number entries of a JSON array and drops
// everything else.
func parseTrackIDs(raw json.RawMessage) []int64 {
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return []int64{}
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			continue
		}
		ids = append(ids, int64(f))
	}
	return ids
}

// Host payloads use the browser sender naming.

type hostTextTrackStyle struct {
	BackgroundColor           string         `json:"backgroundColor"`
	CustomData                map[string]any `json:"customData"`
	EdgeColor                 string         `json:"edgeColor"`
	EdgeType                  string         `json:"edgeType"`
	FontFamily                string         `json:"fontFamily"`
	FontGenericFamily         string         `json:"fontGenericFamily"`
	FontScale                 float64        `json:"fontScale"`
	FontStyle                 string         `json:"fontStyle"`
	ForegroundColor           string         `json:"foregroundColor"`
	WindowColor               string         `json:"windowColor"`
	WindowRoundedCornerRadius int            `json:"windowRoundedCornerRadius"`
	WindowType                string         `json:"windowType"`
}

func (h hostTextTrackStyle) toStyle() TextTrackStyle {
	return TextTrackStyle{
		BackgroundColor:   h.BackgroundColor,
		ForegroundColor:   h.ForegroundColor,
		EdgeColor:         h.EdgeColor,
		EdgeType:          h.EdgeType,
		FontFamily:        h.FontFamily,
		FontGenericFamily: h.FontGenericFamily,
		FontScale:         h.FontScale,
		FontStyle:         h.FontStyle,
		WindowColor:       h.WindowColor,
		WindowType:        h.WindowType,
		WindowRadius:      h.WindowRoundedCornerRadius,
		CustomData:        h.CustomData,
	}
}

type hostTrack struct {
	TrackID          int64  `json:"trackId"`
	Type             string `json:"type"`
	Name             string `json:"name"`
	Language         string `json:"language"`
	TrackContentID   string `json:"trackContentId"`
	TrackContentType string `json:"trackContentType"`
	Subtype          string `json:"subtype"`
}

type hostMediaInfo struct {
	ContentID      string              `json:"contentId"`
	ContentType    string              `json:"contentType"`
	StreamType     string              `json:"streamType"`
	Duration       *float64            `json:"duration"`
	Metadata       map[string]any      `json:"metadata"`
	CustomData     map[string]any      `json:"customData"`
	Tracks         []hostTrack         `json:"tracks"`
	TextTrackStyle *hostTextTrackStyle `json:"textTrackStyle"`
}

func (h hostMediaInfo) toMediaInfo() MediaInfo {
	info := MediaInfo{
		ContentID:   h.ContentID,
		ContentType: h.ContentType,
		StreamType:  h.StreamType,
		Metadata:    h.Metadata,
		CustomData:  h.CustomData,
	}
	if h.Duration != nil {
		info.Duration = *h.Duration
	}
	for _, t := range h.Tracks {
		info.Tracks = append(info.Tracks, Track{
			TrackID:     t.TrackID,
			Type:        t.Type,
			Name:        t.Name,
			Language:    t.Language,
			ContentID:   t.TrackContentID,
			ContentType: t.TrackContentType,
			Subtype:     t.Subtype,
		})
	}
	if h.TextTrackStyle != nil {
		s := h.TextTrackStyle.toStyle()
		info.TextTrackStyle = &s
	}
	return info
}

type hostQueueItem struct {
	ItemID         *int            `json:"itemId"`
	Media          hostMediaInfo   `json:"media"`
	Autoplay       *bool           `json:"autoplay"`
	StartTime      float64         `json:"startTime"`
	PreloadTime    float64         `json:"preloadTime"`
	ActiveTrackIDs json.RawMessage `json:"activeTrackIds"`
	CustomData     map[string]any  `json:"customData"`
}

type hostQueueLoad struct {
	Items      []hostQueueItem `json:"items"`
	StartIndex int             `json:"startIndex"`
	RepeatMode string          `json:"repeatMode"`
	CustomData map[string]any  `json:"customData"`
}

//go:embed schemas/queue_load.json
var queueLoadSchemaJSON string

var queueLoadSchema = mustCompileSchema("https://sendspin.dev/schemas/cast/queue_load.json", queueLoadSchemaJSON)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader([]byte(source))); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeQueueLoad validates and converts a host queue load request.
func decodeQueueLoad(raw json.RawMessage) (QueueLoadRequest, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return QueueLoadRequest{}, newError(CodeInvalidParameter, "queue load request: %v", err)
	}
	if err := queueLoadSchema.Validate(payload); err != nil {
		return QueueLoadRequest{}, newError(CodeInvalidParameter, "queue load request: %v", err)
	}

	var h hostQueueLoad
	if err := json.Unmarshal(raw, &h); err != nil {
		return QueueLoadRequest{}, newError(CodeInvalidParameter, "queue load request: %v", err)
	}

	req := QueueLoadRequest{
		StartIndex: h.StartIndex,
		RepeatMode: RepeatMode(h.RepeatMode),
		CustomData: h.CustomData,
	}
	for _, hi := range h.Items {
		item := QueueItem{
			Media:       ptr(hi.Media.toMediaInfo()),
			Autoplay:    true,
			StartTime:   hi.StartTime,
			PreloadTime: hi.PreloadTime,
			CustomData:  hi.CustomData,
		}
		if hi.ItemID != nil {
			item.ItemID = *hi.ItemID
		}
		if hi.Autoplay != nil {
			item.Autoplay = *hi.Autoplay
		}
		if len(hi.ActiveTrackIDs) > 0 && !isNull(hi.ActiveTrackIDs) {
			item.ActiveTrackIDs = parseTrackIDs(hi.ActiveTrackIDs)
		}
		req.Items = append(req.Items, item)
	}
	if req.StartIndex >= len(req.Items) {
		return QueueLoadRequest{}, newError(CodeInvalidParameter, "start index %d out of range [0, %d)", req.StartIndex, len(req.Items))
	}
	return req, nil
}

// decodeLoadMedia decodes the positional loadMedia arguments:
// contentId, customData, contentType, duration, streamType, autoplay,
// currentTime, metadata, textTrackStyle.
func decodeLoadMedia(args []json.RawMessage) (LoadRequest, error) {
	var (
		contentID, contentType, streamType string
		customData, metadata               map[string]any
		duration, currentTime              float64
		autoplay                           bool
		style                              *hostTextTrackStyle
	)
	err := decodeArgs(args, 1, &contentID, &customData, &contentType, &duration,
		&streamType, &autoplay, &currentTime, &metadata, &style)
	if err != nil {
		return LoadRequest{}, err
	}

	req := LoadRequest{
		Media: MediaInfo{
			ContentID:   contentID,
			ContentType: contentType,
			StreamType:  streamType,
			Duration:    duration,
			Metadata:    metadata,
			CustomData:  customData,
		},
		Autoplay:    autoplay,
		CurrentTime: currentTime,
	}
	if style != nil {
		s := style.toStyle()
		req.Media.TextTrackStyle = &s
	}
	return req, nil
}

func ptr[T any](v T) *T {
	return &v
}
