package randomname

// Animals are the five martial-arts styles.
var Animals = []string{"Tiger", "Leopard", "Crane", "Snake", "Dragon"}

// Pieces are the chess pieces.
var Pieces = []string{"Pawn", "Knight", "Bishop", "Rook", "Queen", "King"}
