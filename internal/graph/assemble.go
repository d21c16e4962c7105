// Package graph assembles the renderable friendship-interaction graph from
// the mutual topology and the aggregated interaction matrices.
package graph

import (
	"sort"

	"github.com/v-graph/vgraph/internal/incidence"
	"github.com/v-graph/vgraph/internal/social"
)

const (
	// CloseFriendCount is how many top friends the ranking keeps.
	CloseFriendCount = 3

	graphHeading         = "Social graph of friends"
	nodeShapeImage       = "circularImage"
	userNodeColor        = "#FF7092"
	friendNodeColor      = "#000000"
	userEdgeColor        = "#FF7092"
	userNodeSize         = 50
	friendNodeSize       = 35
	userNodeMass         = 5
	friendNodeMass       = 4
	arrowsStyleToRecip   = "to"
	arrowsStyleUserEdge  = "middle"
	edgeTitleFromPrefix  = "from: "
	edgeTitleToPrefix    = "\nto:   "
	unknownNodeTitleText = "Unknown"
)

// Node is one rendered graph vertex keyed by the network-native numeric ID.
type Node struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Shape string `json:"shape"`
	Color string `json:"color,omitempty"`
	Size  int    `json:"size"`
	Mass  int    `json:"mass"`
	Image string `json:"image,omitempty"`
}

// Edge is one rendered connection. Metric edges point actor to recipient.
type Edge struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	Value  int    `json:"value"`
	Color  string `json:"color,omitempty"`
	Arrows string `json:"arrows,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Graph is the assembled node/edge structure handed to the renderer. The
// three metric edge sets stay separate categories; the renderer styles them
// independently of the topology edges and never deduplicates across sets.
type Graph struct {
	Heading      string
	Nodes        []Node
	Edges        []Edge
	Gifts        []Edge
	Likes        []Edge
	Comments     []Edge
	CloseFriends []social.FriendSummary
}

// Assemble builds the graph for one analyzed profile. Output is
// deterministic: friend-list order drives node emission and tie-breaks,
// matrix rows and columns iterate in ascending ID order.
func Assemble(profile *social.Profile, friendIDs []int64, topology social.MutualTopology, gifts incidence.Matrix, likes incidence.Matrix, comments incidence.Matrix) *Graph {
	assembled := &Graph{Heading: graphHeading}

	titlesByID := make(map[int64]string, len(friendIDs)+1)

	userNode := Node{
		ID:    profile.UID,
		Label: profile.FirstName,
		Title: profile.DisplayName(),
		Shape: nodeShapeImage,
		Color: userNodeColor,
		Size:  userNodeSize,
		Mass:  userNodeMass,
		Image: profile.ImageURL,
	}
	assembled.Nodes = append(assembled.Nodes, userNode)
	titlesByID[profile.UID] = userNode.Title

	for _, friend := range profile.Friends.Items {
		friendTitle := friendDisplayTitle(friend)
		assembled.Nodes = append(assembled.Nodes, Node{
			ID:    friend.ID,
			Label: friend.LastName,
			Title: friendTitle,
			Shape: nodeShapeImage,
			Color: friendNodeColor,
			Size:  friendNodeSize,
			Mass:  friendNodeMass,
			Image: friend.PhotoURL,
		})
		titlesByID[friend.ID] = friendTitle
	}

	assembled.Edges = append(assembled.Edges, mutualEdges(friendIDs, topology, titlesByID)...)
	assembled.Edges = append(assembled.Edges, userEdges(profile.UID, friendIDs, topology, titlesByID)...)

	assembled.Gifts = metricEdges(profile.UID, gifts, titlesByID)
	assembled.Likes = metricEdges(profile.UID, likes, titlesByID)
	assembled.Comments = metricEdges(profile.UID, comments, titlesByID)

	assembled.CloseFriends = closeFriends(profile, friendIDs, topology)
	return assembled
}

// mutualEdges links each friend to every mutual friend, weighted by the
// co-mutual strength of the pair: the size of the intersection of both
// friends' mutual sets, zero when the far side is unknown to the topology.
func mutualEdges(friendIDs []int64, topology social.MutualTopology, titlesByID map[int64]string) []Edge {
	var edges []Edge
	for _, friendID := range friendIDs {
		mutualIDs, known := topology[friendID]
		if !known {
			continue
		}
		for _, mutualID := range mutualIDs {
			weight := 0
			if farSide, farKnown := topology[mutualID]; farKnown {
				weight = intersectionSize(mutualIDs, farSide)
			}
			edges = append(edges, Edge{
				From:  friendID,
				To:    mutualID,
				Value: weight,
				Title: edgeTitle(friendID, mutualID, titlesByID),
			})
		}
	}
	return edges
}

// userEdges links the analyzed user to every friend, weighted by the size
// of that friend's mutual set and visually distinguished.
func userEdges(userID int64, friendIDs []int64, topology social.MutualTopology, titlesByID map[int64]string) []Edge {
	edges := make([]Edge, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		edges = append(edges, Edge{
			From:  userID,
			To:    friendID,
			Value: len(topology[friendID]),
			Color: userEdgeColor,
			Title: edgeTitle(userID, friendID, titlesByID),
		})
	}
	return edges
}

// metricEdges emits one directed actor-to-recipient edge per nonzero cell.
// Edges touching the analyzed user keep the user styling.
func metricEdges(userID int64, matrix incidence.Matrix, titlesByID map[int64]string) []Edge {
	var edges []Edge
	for _, recipientID := range matrix.Rows() {
		for _, actorID := range matrix.Cols(recipientID) {
			weight := matrix.Weight(recipientID, actorID)
			if weight == 0 {
				continue
			}
			edge := Edge{
				From:   actorID,
				To:     recipientID,
				Value:  weight,
				Arrows: arrowsStyleToRecip,
				Title:  edgeTitle(actorID, recipientID, titlesByID),
			}
			if recipientID == userID || actorID == userID {
				edge.Arrows = arrowsStyleUserEdge
				edge.Color = userEdgeColor
			}
			edges = append(edges, edge)
		}
	}
	return edges
}

// closeFriends ranks friends by mutual-set size descending, stable on the
// original friend-list order, and resolves the top IDs back to summaries.
func closeFriends(profile *social.Profile, friendIDs []int64, topology social.MutualTopology) []social.FriendSummary {
	ranked := make([]int64, 0, len(topology))
	for _, friendID := range friendIDs {
		if _, known := topology[friendID]; known {
			ranked = append(ranked, friendID)
		}
	}
	sort.SliceStable(ranked, func(firstIndex, secondIndex int) bool {
		return len(topology[ranked[firstIndex]]) > len(topology[ranked[secondIndex]])
	})
	if len(ranked) > CloseFriendCount {
		ranked = ranked[:CloseFriendCount]
	}

	selected := make(map[int64]bool, len(ranked))
	for _, friendID := range ranked {
		selected[friendID] = true
	}
	closeList := make([]social.FriendSummary, 0, len(ranked))
	for _, friend := range profile.Friends.Items {
		if selected[friend.ID] {
			closeList = append(closeList, friend)
		}
	}
	return closeList
}

func intersectionSize(firstIDs []int64, secondIDs []int64) int {
	seen := make(map[int64]bool, len(firstIDs))
	for _, id := range firstIDs {
		seen[id] = true
	}
	size := 0
	for _, id := range secondIDs {
		if seen[id] {
			size++
			seen[id] = false
		}
	}
	return size
}

func edgeTitle(fromID int64, toID int64, titlesByID map[int64]string) string {
	return edgeTitleFromPrefix + nodeTitle(fromID, titlesByID) + edgeTitleToPrefix + nodeTitle(toID, titlesByID)
}

func nodeTitle(nodeID int64, titlesByID map[int64]string) string {
	if title, known := titlesByID[nodeID]; known && title != "" {
		return title
	}
	return unknownNodeTitleText
}

func friendDisplayTitle(friend social.FriendSummary) string {
	switch {
	case friend.FirstName != "" && friend.LastName != "":
		return friend.FirstName + " " + friend.LastName
	case friend.FirstName != "":
		return friend.FirstName
	case friend.LastName != "":
		return friend.LastName
	default:
		return unknownNodeTitleText
	}
}
