package lexicon

// Valence lists tuned for customer-review vocabulary.

const positiveWords = `
good great excellent amazing awesome fantastic wonderful delicious tasty
fresh flavorful juicy tender crisp rich authentic generous satisfying
friendly helpful attentive polite courteous welcoming warm
clean spotless tidy cozy charming beautiful lovely pleasant nice
quick fast prompt efficient
affordable reasonable fair worth bargain
perfect best love loved enjoy enjoyed enjoyable recommend recommended
happy delighted delightful superb outstanding impressive exceptional
gem favorite memorable
`

const negativeWords = `
bad terrible horrible awful disgusting gross
bland stale cold soggy greasy overcooked undercooked burnt tasteless rotten
rude unfriendly unhelpful dismissive inattentive hostile
slow sluggish late endless
dirty filthy grimy smelly sticky
noisy loud cramped crowded chaotic messy
expensive overpriced pricey stingy tiny
mediocre disappointing disappointed underwhelming worst hate hated poor
lacking broken unacceptable dreadful appalling avoid
`

const negatorWords = `
not no never none nothing without
isnt isn't wasnt wasn't arent aren't werent weren't
dont don't didnt didn't doesnt doesn't
cant can't couldnt couldn't wont won't wouldnt wouldn't
hardly barely lacked lacks
`

const boosterWords = `
very really extremely so too incredibly absolutely super totally utterly
quite exceptionally ridiculously insanely
`
