package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"KoordeDHT/internal/domain"
)

// MaxDatagramSize bounds every encoded message to the spec's datagram cap.
const MaxDatagramSize = 1024

func peerToken(p domain.Peer) string {
	return fmt.Sprintf("%s %d %d", p.IP, p.Port, uint64(p.ID))
}

func parsePeer(ip, port, id string) (domain.Peer, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return domain.Peer{}, fmt.Errorf("protocol: bad port %q: %w", port, err)
	}
	idv, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return domain.Peer{}, fmt.Errorf("protocol: bad id %q: %w", id, err)
	}
	return domain.Peer{IP: ip, Port: p, ID: domain.ID(idv)}, nil
}

// Encode renders a Message as a single whitespace-delimited wire line,
// without a trailing newline.
func Encode(m Message) (string, error) {
	var b strings.Builder
	switch v := m.(type) {
	case FindSuccessor:
		fmt.Fprintf(&b, "FIND_SUCCESSOR %d %d", v.ReqID, uint64(v.Target))
	case Successor:
		fmt.Fprintf(&b, "SUCCESSOR %d %s", v.ReqID, peerToken(v.Peer))
	case Notify:
		fmt.Fprintf(&b, "NOTIFY %d", uint64(v.CandidateID))
	case GetPredecessor:
		fmt.Fprintf(&b, "GET_PREDECESSOR %d", v.ReqID)
	case Predecessor:
		if !v.Has {
			fmt.Fprintf(&b, "PREDECESSOR %d NONE", v.ReqID)
		} else {
			fmt.Fprintf(&b, "PREDECESSOR %d %s", v.ReqID, peerToken(v.Peer))
		}
	case GetSuccessorList:
		fmt.Fprintf(&b, "GET_SUCCESSOR_LIST %d", v.ReqID)
	case SuccessorList:
		fmt.Fprintf(&b, "SUCCESSOR_LIST %d", v.ReqID)
		for _, p := range v.Peers {
			fmt.Fprintf(&b, " %s", peerToken(p))
		}
	case UpdatePredecessorTo:
		fmt.Fprintf(&b, "UPDATE_PREDECESSOR_TO %s", peerToken(v.Peer))
	case UpdateSuccessorTo:
		fmt.Fprintf(&b, "UPDATE_SUCCESSOR_TO %s", peerToken(v.Peer))
	case UpdateFinger:
		fmt.Fprintf(&b, "UPDATE_FINGER %s %d", peerToken(v.Peer), v.Index)
	case Store:
		fmt.Fprintf(&b, "STORE %s %s", v.Key, v.Value)
	case Replicate:
		fmt.Fprintf(&b, "REPLICATE %s %s", v.Key, v.Value)
	case Lookup:
		fmt.Fprintf(&b, "LOOKUP %d %s", v.ReqID, v.Key)
	case Result:
		if !v.Found {
			fmt.Fprintf(&b, "RESULT %d %s %s", v.ReqID, v.Key, NotFoundValue)
		} else {
			fmt.Fprintf(&b, "RESULT %d %s %s", v.ReqID, v.Key, v.Value)
		}
	case Ping:
		fmt.Fprintf(&b, "PING %d", v.ReqID)
	case Pong:
		fmt.Fprintf(&b, "PONG %d", v.ReqID)
	default:
		return "", fmt.Errorf("protocol: unknown message type %T", m)
	}
	out := b.String()
	if len(out) > MaxDatagramSize {
		return "", fmt.Errorf("protocol: encoded message exceeds %d bytes (%d)", MaxDatagramSize, len(out))
	}
	return out, nil
}

// Decode parses one datagram's payload into a Message. A malformed line
// is reported as an error; callers must log and drop rather than treat it
// as fatal.
func Decode(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("protocol: empty datagram")
	}
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "FIND_SUCCESSOR":
		if len(args) != 2 {
			return nil, fmt.Errorf("protocol: FIND_SUCCESSOR wants 2 args, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		target, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad target id: %w", err)
		}
		return FindSuccessor{ReqID: reqID, Target: domain.ID(target)}, nil

	case "SUCCESSOR":
		if len(args) != 4 {
			return nil, fmt.Errorf("protocol: SUCCESSOR wants 4 args, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		p, err := parsePeer(args[1], args[2], args[3])
		if err != nil {
			return nil, err
		}
		return Successor{ReqID: reqID, Peer: p}, nil

	case "NOTIFY":
		if len(args) != 1 {
			return nil, fmt.Errorf("protocol: NOTIFY wants 1 arg, got %d", len(args))
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad candidate id: %w", err)
		}
		return Notify{CandidateID: domain.ID(id)}, nil

	case "GET_PREDECESSOR":
		if len(args) != 1 {
			return nil, fmt.Errorf("protocol: GET_PREDECESSOR wants 1 arg, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		return GetPredecessor{ReqID: reqID}, nil

	case "PREDECESSOR":
		if len(args) < 2 {
			return nil, fmt.Errorf("protocol: PREDECESSOR wants >=2 args, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		if args[1] == "NONE" {
			return Predecessor{ReqID: reqID, Has: false}, nil
		}
		if len(args) != 4 {
			return nil, fmt.Errorf("protocol: PREDECESSOR wants 4 args, got %d", len(args))
		}
		p, err := parsePeer(args[1], args[2], args[3])
		if err != nil {
			return nil, err
		}
		return Predecessor{ReqID: reqID, Has: true, Peer: p}, nil

	case "GET_SUCCESSOR_LIST":
		if len(args) != 1 {
			return nil, fmt.Errorf("protocol: GET_SUCCESSOR_LIST wants 1 arg, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		return GetSuccessorList{ReqID: reqID}, nil

	case "SUCCESSOR_LIST":
		if len(args) < 1 || (len(args)-1)%3 != 0 {
			return nil, fmt.Errorf("protocol: malformed SUCCESSOR_LIST")
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		rest := args[1:]
		peers := make([]domain.Peer, 0, len(rest)/3)
		for i := 0; i < len(rest); i += 3 {
			p, err := parsePeer(rest[i], rest[i+1], rest[i+2])
			if err != nil {
				return nil, err
			}
			peers = append(peers, p)
		}
		return SuccessorList{ReqID: reqID, Peers: peers}, nil

	case "UPDATE_PREDECESSOR_TO":
		if len(args) != 3 {
			return nil, fmt.Errorf("protocol: UPDATE_PREDECESSOR_TO wants 3 args, got %d", len(args))
		}
		p, err := parsePeer(args[0], args[1], args[2])
		if err != nil {
			return nil, err
		}
		return UpdatePredecessorTo{Peer: p}, nil

	case "UPDATE_SUCCESSOR_TO":
		if len(args) != 3 {
			return nil, fmt.Errorf("protocol: UPDATE_SUCCESSOR_TO wants 3 args, got %d", len(args))
		}
		p, err := parsePeer(args[0], args[1], args[2])
		if err != nil {
			return nil, err
		}
		return UpdateSuccessorTo{Peer: p}, nil

	case "UPDATE_FINGER":
		if len(args) != 4 {
			return nil, fmt.Errorf("protocol: UPDATE_FINGER wants 4 args, got %d", len(args))
		}
		p, err := parsePeer(args[0], args[1], args[2])
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(args[3])
		if err != nil {
			return nil, fmt.Errorf("protocol: bad finger index: %w", err)
		}
		return UpdateFinger{Peer: p, Index: idx}, nil

	case "STORE":
		if len(args) < 2 {
			return nil, fmt.Errorf("protocol: STORE wants >=2 args, got %d", len(args))
		}
		return Store{Key: args[0], Value: strings.Join(args[1:], " ")}, nil

	case "REPLICATE":
		if len(args) < 2 {
			return nil, fmt.Errorf("protocol: REPLICATE wants >=2 args, got %d", len(args))
		}
		return Replicate{Key: args[0], Value: strings.Join(args[1:], " ")}, nil

	case "LOOKUP":
		if len(args) != 2 {
			return nil, fmt.Errorf("protocol: LOOKUP wants 2 args, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		return Lookup{ReqID: reqID, Key: args[1]}, nil

	case "RESULT":
		if len(args) < 3 {
			return nil, fmt.Errorf("protocol: RESULT wants >=3 args, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		value := strings.Join(args[2:], " ")
		if value == NotFoundValue {
			return Result{ReqID: reqID, Key: args[1], Found: false}, nil
		}
		return Result{ReqID: reqID, Key: args[1], Value: value, Found: true}, nil

	case "PING":
		if len(args) != 1 {
			return nil, fmt.Errorf("protocol: PING wants 1 arg, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		return Ping{ReqID: reqID}, nil

	case "PONG":
		if len(args) != 1 {
			return nil, fmt.Errorf("protocol: PONG wants 1 arg, got %d", len(args))
		}
		reqID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: bad reqid: %w", err)
		}
		return Pong{ReqID: reqID}, nil

	default:
		return nil, fmt.Errorf("protocol: unknown command %q", cmd)
	}
}
