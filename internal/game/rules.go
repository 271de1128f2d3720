package game

// Rules evaluates a board for one game kind. Implementations must be
// stateless; the Table owns every board.
type Rules interface {
	// Cells is the fixed board size.
	Cells() int
	// Winner returns the mark holding a winning line, or Empty.
	Winner(board []Mark) Mark
}

// KindTicTacToe is the three-in-a-row game on a 3x3 board.
const KindTicTacToe Kind = "tictactoe"

var ticTacToeLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// TicTacToe implements Rules for a row-major 3x3 board.
type TicTacToe struct{}

// Cells implements Rules.
func (TicTacToe) Cells() int { return 9 }

// Winner implements Rules.
func (TicTacToe) Winner(board []Mark) Mark {
	if len(board) != 9 {
		return Empty
	}
	for _, line := range ticTacToeLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != Empty && a == b && a == c {
			return a
		}
	}
	return Empty
}

func full(board []Mark) bool {
	for _, m := range board {
		if m == Empty {
			return false
		}
	}
	return true
}
